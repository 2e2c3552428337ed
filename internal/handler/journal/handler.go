package journal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/service/journal"
	"github.com/mindease/mindease-api/pkg/httputil"
)

type Handler struct {
	service *journal.Service
}

func NewHandler(service *journal.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	entries := r.Group("/journal")
	{
		entries.POST("", h.CreateEntry)
		entries.GET("", h.ListEntries)
		entries.GET("/:id", h.GetEntry)
		entries.PUT("/:id", h.UpdateEntry)
		entries.DELETE("/:id", h.DeleteEntry)
	}
}

type listQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0,max=100"`
}

func (h *Handler) CreateEntry(c *gin.Context) {
	var req model.JournalEntryRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	entry, err := h.service.Create(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, entry)
}

func (h *Handler) ListEntries(c *gin.Context) {
	var q listQuery
	if !httputil.BindQuery(c, &q) {
		return
	}
	entries, err := h.service.List(c.Request.Context(), middleware.Actor(c), q.Limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, entries)
}

func (h *Handler) GetEntry(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, entry)
}

func (h *Handler) UpdateEntry(c *gin.Context) {
	var req model.JournalEntryRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	entry, err := h.service.Update(c.Request.Context(), middleware.Actor(c), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, entry)
}

func (h *Handler) DeleteEntry(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"deleted": true})
}
