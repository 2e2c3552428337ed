package therapist

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/service/therapist"
	"github.com/mindease/mindease-api/pkg/httputil"
)

type Handler struct {
	service *therapist.Service
}

func NewHandler(service *therapist.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the directory. Browsing is public.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/therapists", h.ListTherapists)
	r.GET("/therapists/:id", h.GetTherapist)
}

func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.PUT("/therapists/:id/profile", h.UpdateProfile)
}

type listQuery struct {
	Specialty string   `form:"specialty" binding:"omitempty,max=60"`
	MinRate   *float64 `form:"minRate" binding:"omitempty,gte=0"`
	MaxRate   *float64 `form:"maxRate" binding:"omitempty,gte=0"`
	Verified  *bool    `form:"verified"`
}

func (h *Handler) ListTherapists(c *gin.Context) {
	var q listQuery
	if !httputil.BindQuery(c, &q) {
		return
	}

	list, err := h.service.List(c.Request.Context(), model.TherapistFilter{
		Specialty: q.Specialty,
		MinRate:   q.MinRate,
		MaxRate:   q.MaxRate,
		Verified:  q.Verified,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) GetTherapist(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdateProfileRequest
	if !httputil.BindJSON(c, &req) {
		return
	}

	t, err := h.service.UpdateProfile(c.Request.Context(), middleware.Actor(c), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, t)
}
