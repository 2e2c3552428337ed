package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/realtime"
	"github.com/mindease/mindease-api/internal/service/chat"
	"github.com/mindease/mindease-api/pkg/auth"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/mindease/mindease-api/pkg/httputil"
)

type Config struct {
	Client realtime.ClientConfig
	// OriginPatterns are host patterns allowed to open a socket cross-origin.
	OriginPatterns []string
}

// Handler upgrades authenticated requests to WebSocket sessions.
type Handler struct {
	hub    *realtime.Hub
	jwt    auth.JWTService
	chat   *chat.Service
	config Config
	logger zerolog.Logger
}

func NewHandler(hub *realtime.Hub, jwt auth.JWTService, chat *chat.Service, config Config, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		jwt:    jwt,
		chat:   chat,
		config: config,
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Serve)
}

// Serve authenticates with ?token= or the Authorization header, then runs
// the session until the peer goes away.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing token"))
		return
	}
	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized("invalid or expired token"))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.config.OriginPatterns,
	})
	if err != nil {
		// Accept has already written the failure response
		h.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		c.Abort()
		return
	}

	client := realtime.NewClient(conn, claims.UserID(), h.config.Client, h.logger)
	s := &session{
		handler: h,
		client:  client,
		actor:   policy.Actor{ID: claims.UserID(), Role: model.Role(claims.Role)},
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go client.WritePump(ctx)

	h.logger.Debug().Str("user_id", s.actor.ID).Str("conn_id", client.ID()).Msg("Client connected")

	err = client.ReadLoop(ctx, s.handle, func(err error) { s.fail(err.Error()) })
	h.hub.Leave(client)
	if err != nil {
		h.logger.Debug().Err(err).Str("conn_id", client.ID()).Msg("Connection closed with error")
		client.Close(websocket.StatusInternalError, "")
		return
	}
	client.Close(websocket.StatusNormalClosure, "")
	h.logger.Debug().Str("conn_id", client.ID()).Msg("Client disconnected")
}

type session struct {
	handler *Handler
	client  *realtime.Client
	actor   policy.Actor
}

func (s *session) handle(ctx context.Context, f realtime.Frame) {
	if f.Event == model.EventJoin {
		s.join(f.Data)
		return
	}
	if _, joined := s.handler.hub.ChannelOf(s.client); !joined {
		s.fail("join your channel before sending " + f.Event)
		return
	}

	switch f.Event {
	case model.EventPrivateMessage:
		var p model.PrivateMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			s.fail("invalid privateMessage payload")
			return
		}
		if _, err := s.handler.chat.Send(ctx, s.actor, p.RecipientID, p.Message); err != nil {
			s.failErr(err)
		}
	case model.EventTyping, model.EventStopTyping:
		var payload map[string]any
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			s.fail("invalid " + f.Event + " payload")
			return
		}
		recipient, _ := payload["recipientId"].(string)
		s.handler.chat.Typing(ctx, s.actor, recipient, payload, f.Event == model.EventTyping)
	default:
		s.fail("unknown event " + f.Event)
	}
}

// join accepts the caller's own id only; one may not listen on another channel.
func (s *session) join(data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		s.fail("join expects a user id")
		return
	}
	target := policy.Target{Resource: policy.ResourceChannel, OwnerID: userID}
	if err := policy.Authorize(s.actor, policy.ActionJoin, target); err != nil {
		s.fail("cannot join another user's channel")
		return
	}
	s.handler.hub.Join(s.client, userID)
	s.handler.hub.SendTo(s.client, model.EventJoined, gin.H{"userId": userID})
}

func (s *session) fail(message string) {
	s.handler.hub.SendTo(s.client, model.EventError, gin.H{"message": message})
}

func (s *session) failErr(err error) {
	if appErr, ok := apperrors.As(err); ok && appErr.HTTPStatus() != http.StatusInternalServerError {
		s.fail(appErr.Message)
		return
	}
	s.handler.logger.Error().Err(err).Str("conn_id", s.client.ID()).Msg("Failed to handle frame")
	s.fail("internal server error")
}
