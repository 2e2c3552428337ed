package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	maxContent   = 4000
)

// Notifier pushes chat activity to connected clients.
type Notifier interface {
	NewMessage(ctx context.Context, msg *model.ChatMessage)
	Typing(ctx context.Context, senderID, recipientID string, payload map[string]any, started bool)
}

type Service struct {
	messages repository.ChatRepository
	users    repository.UserRepository
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(messages repository.ChatRepository, users repository.UserRepository, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		messages: messages,
		users:    users,
		notifier: notifier,
		logger:   logger.With().Str("component", "chat").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send persists a private message and routes it to the recipient.
func (s *Service) Send(ctx context.Context, actor policy.Actor, recipientID, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("message is required", nil)
	}
	if len(content) > maxContent {
		return nil, apperrors.Validation(fmt.Sprintf("message must be at most %d characters", maxContent), nil)
	}
	if err := s.peer(ctx, actor, recipientID); err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:          uuid.NewString(),
		SenderID:    actor.ID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	s.logger.Debug().
		Str("message_id", msg.ID).
		Str("sender_id", msg.SenderID).
		Str("recipient_id", msg.RecipientID).
		Msg("Message sent")

	s.notifier.NewMessage(ctx, msg)
	return msg, nil
}

// Typing forwards a typing indicator. Unknown recipients are ignored.
func (s *Service) Typing(ctx context.Context, actor policy.Actor, recipientID string, payload map[string]any, started bool) {
	if recipientID == "" || recipientID == actor.ID {
		return
	}
	s.notifier.Typing(ctx, actor.ID, recipientID, payload, started)
}

// Conversation returns the latest messages between the caller and peer, oldest first.
func (s *Service) Conversation(ctx context.Context, actor policy.Actor, peerID string, limit int) ([]*model.ChatMessage, error) {
	if peerID == "" {
		return nil, apperrors.Validation("peer id is required", nil)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	msgs, err := s.messages.Conversation(ctx, actor.ID, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if msgs == nil {
		msgs = []*model.ChatMessage{}
	}
	return msgs, nil
}

// MarkRead marks every unread message from peer to the caller as read.
func (s *Service) MarkRead(ctx context.Context, actor policy.Actor, peerID string) (int64, error) {
	n, err := s.messages.MarkRead(ctx, actor.ID, peerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return n, nil
}

func (s *Service) peer(ctx context.Context, actor policy.Actor, recipientID string) error {
	if recipientID == "" {
		return apperrors.Validation("recipientId is required", nil)
	}
	if recipientID == actor.ID {
		return apperrors.Validation("cannot send a message to yourself", nil)
	}
	u, err := s.users.Get(ctx, recipientID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		return apperrors.NotFound("recipient", err)
	}
	if err != nil {
		return fmt.Errorf("failed to get recipient: %w", err)
	}
	return nil
}
