package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/mindease/mindease-api/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    int         `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithError maps AppErrors to their HTTP status. Anything else is a 500
// whose detail stays in the logs.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	if appErr, ok := apperrors.As(err); ok {
		status = appErr.HTTPStatus()
		if status != http.StatusInternalServerError {
			message = appErr.Message
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Status:  StatusError,
		Message: message,
		Code:    status,
	})
}

// BindJSON binds and validates the body, answering 400 on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondWithError(c, apperrors.Validation(validator.Describe(err), err))
		return false
	}
	return true
}

// BindQuery binds query parameters, answering 400 on failure.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		RespondWithError(c, apperrors.Validation(validator.Describe(err), err))
		return false
	}
	return true
}
