package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/mindease/mindease-api/pkg/httputil"
	"github.com/rs/zerolog/log"
)

// ErrorHandler logs every error attached to the request. If the handler
// attached an error without writing a response, the last one is rendered.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			event := log.Warn()
			if c.Writer.Status() >= 500 || !c.Writer.Written() {
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
