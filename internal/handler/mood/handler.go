package mood

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/service/mood"
	"github.com/mindease/mindease-api/pkg/httputil"
)

type Handler struct {
	service *mood.Service
}

func NewHandler(service *mood.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	moods := r.Group("/mood")
	{
		moods.POST("", h.RecordMood)
		moods.GET("", h.ListMoods)
		moods.GET("/stats", h.Stats)
	}
}

type windowQuery struct {
	Days int `form:"days" binding:"omitempty,min=0,max=365"`
}

func (h *Handler) RecordMood(c *gin.Context) {
	var req model.MoodEntryRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	entry, err := h.service.Record(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, entry)
}

func (h *Handler) ListMoods(c *gin.Context) {
	var q windowQuery
	if !httputil.BindQuery(c, &q) {
		return
	}
	entries, err := h.service.History(c.Request.Context(), middleware.Actor(c), q.Days)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, entries)
}

func (h *Handler) Stats(c *gin.Context) {
	var q windowQuery
	if !httputil.BindQuery(c, &q) {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), middleware.Actor(c), q.Days)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, stats)
}
