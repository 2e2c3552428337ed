package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/service/chat"
	"github.com/mindease/mindease-api/internal/service/companion"
	"github.com/mindease/mindease-api/pkg/httputil"
)

// Handler serves both the AI companion and private chat history.
type Handler struct {
	chat      *chat.Service
	companion *companion.Service
}

func NewHandler(chat *chat.Service, companion *companion.Service) *Handler {
	return &Handler{chat: chat, companion: companion}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/chat")
	{
		g.POST("/ai", h.AskCompanion)
		g.GET("/ai/history", h.CompanionHistory)

		g.GET("/messages/:peerId", h.Conversation)
		g.POST("/messages/:peerId", h.SendMessage)
		g.POST("/messages/:peerId/read", h.MarkRead)
	}
}

type limitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0,max=200"`
}

func (h *Handler) AskCompanion(c *gin.Context) {
	var req model.CompanionRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	reply, err := h.companion.Send(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, reply)
}

func (h *Handler) CompanionHistory(c *gin.Context) {
	var q limitQuery
	if !httputil.BindQuery(c, &q) {
		return
	}
	msgs, err := h.companion.History(c.Request.Context(), middleware.Actor(c), q.Limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, msgs)
}

func (h *Handler) Conversation(c *gin.Context) {
	var q limitQuery
	if !httputil.BindQuery(c, &q) {
		return
	}
	msgs, err := h.chat.Conversation(c.Request.Context(), middleware.Actor(c), c.Param("peerId"), q.Limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, msgs)
}

// SendMessage is the REST fallback for clients without a socket.
func (h *Handler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), middleware.Actor(c), c.Param("peerId"), req.Content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	n, err := h.chat.MarkRead(c.Request.Context(), middleware.Actor(c), c.Param("peerId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"marked": n})
}
