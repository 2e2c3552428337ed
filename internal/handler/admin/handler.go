package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/service/admin"
	"github.com/mindease/mindease-api/pkg/httputil"
)

type Handler struct {
	service *admin.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *admin.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/admin", h.auth.RequireRole(model.RoleAdmin))
	{
		g.GET("/users", h.ListUsers)
		g.PATCH("/users/:id/active", h.SetActive)
		g.PATCH("/therapists/:id/verify", h.VerifyTherapist)
	}
}

type usersQuery struct {
	Role string `form:"role"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	var q usersQuery
	if !httputil.BindQuery(c, &q) {
		return
	}
	users, err := h.service.ListUsers(c.Request.Context(), middleware.Actor(c), model.Role(q.Role))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, users)
}

func (h *Handler) SetActive(c *gin.Context) {
	var req model.SetActiveRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	user, err := h.service.SetActive(c.Request.Context(), middleware.Actor(c), c.Param("id"), *req.Active)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, user)
}

func (h *Handler) VerifyTherapist(c *gin.Context) {
	var req model.VerifyRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	t, err := h.service.VerifyTherapist(c.Request.Context(), middleware.Actor(c), c.Param("id"), *req.Verified)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}
