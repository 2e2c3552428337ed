package companion

import (
	"context"
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
	DefaultHistoryLimit = 50
	maxHistoryLimit     = 200
	contextWindow       = 10
)

type Service struct {
	repo      repository.CompanionRepository
	responder Responder
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo repository.CompanionRepository, responder Responder, logger zerolog.Logger) *Service {
	if responder == nil {
		responder = NewRuleResponder()
	}
	return &Service{
		repo:      repo,
		responder: responder,
		logger:    logger.With().Str("component", "companion").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send stores the user's message, asks the responder and stores its reply.
func (s *Service) Send(ctx context.Context, actor policy.Actor, req *model.CompanionRequest) (*model.CompanionReply, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperrors.Validation("message is required", nil)
	}

	history, err := s.repo.History(ctx, actor.ID, contextWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load companion history: %w", err)
	}

	userMsg := &model.CompanionMessage{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		Sender:    model.CompanionSenderUser,
		Content:   text,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save companion message: %w", err)
	}

	reply, err := s.responder.GenerateReply(ctx, text, history)
	if err != nil {
		return nil, fmt.Errorf("failed to generate companion reply: %w", err)
	}

	confidence := reply.Confidence
	aiMsg := &model.CompanionMessage{
		ID:         uuid.NewString(),
		UserID:     actor.ID,
		Sender:     model.CompanionSenderAI,
		Content:    reply.Content,
		Confidence: &confidence,
		CreatedAt:  s.now(),
	}
	// keep the reply strictly after the question
	if !aiMsg.CreatedAt.After(userMsg.CreatedAt) {
		aiMsg.CreatedAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	if err := s.repo.Create(ctx, aiMsg); err != nil {
		return nil, fmt.Errorf("failed to save companion reply: %w", err)
	}

	s.logger.Debug().
		Str("user_id", actor.ID).
		Float64("confidence", confidence).
		Msg("Companion replied")

	return &model.CompanionReply{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// History returns the caller's companion conversation, oldest first.
func (s *Service) History(ctx context.Context, actor policy.Actor, limit int) ([]*model.CompanionMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := s.repo.History(ctx, actor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load companion history: %w", err)
	}
	if msgs == nil {
		msgs = []*model.CompanionMessage{}
	}
	return msgs, nil
}
