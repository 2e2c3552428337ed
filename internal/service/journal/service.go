package journal

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
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service manages a user's private journal.
type Service struct {
	repo repository.JournalRepository
	now  func() time.Time
}

func NewService(repo repository.JournalRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, actor policy.Actor, req *model.JournalEntryRequest) (*model.JournalEntry, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.Target{Resource: policy.ResourceJournalEntry, OwnerID: actor.ID}); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &model.JournalEntry{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		CreatedAt: now,
	}
	apply(entry, req, now)

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create journal entry: %w", err)
	}
	return entry, nil
}

// List returns the caller's entries, newest first. limit <= 0 uses a default.
func (s *Service) List(ctx context.Context, actor policy.Actor, limit int) ([]*model.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	entries, err := s.repo.ListByUser(ctx, actor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}
	return entries, nil
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id string) (*model.JournalEntry, error) {
	return s.authorized(ctx, actor, policy.ActionRead, id)
}

func (s *Service) Update(ctx context.Context, actor policy.Actor, id string, req *model.JournalEntryRequest) (*model.JournalEntry, error) {
	entry, err := s.authorized(ctx, actor, policy.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	apply(entry, req, s.now())
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update journal entry: %w", err)
	}
	return entry, nil
}

func (s *Service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if _, err := s.authorized(ctx, actor, policy.ActionDelete, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	return nil
}

// authorized loads the entry and hides entries the actor may not see behind NotFound.
func (s *Service) authorized(ctx context.Context, actor policy.Actor, action policy.Action, id string) (*model.JournalEntry, error) {
	entry, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("journal entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	target := policy.Target{Resource: policy.ResourceJournalEntry, OwnerID: entry.UserID, Private: entry.IsPrivate}
	if !policy.Allowed(actor, action, target) {
		if policy.Allowed(actor, policy.ActionRead, target) {
			return nil, policy.Authorize(actor, action, target)
		}
		return nil, apperrors.NotFound("journal entry", nil)
	}
	return entry, nil
}

func apply(entry *model.JournalEntry, req *model.JournalEntryRequest, now time.Time) {
	entry.Title = strings.TrimSpace(req.Title)
	entry.Content = req.Content
	entry.Mood = req.Mood
	entry.Tags = model.DedupeStrings(req.Tags)
	entry.IsPrivate = true
	if req.IsPrivate != nil {
		entry.IsPrivate = *req.IsPrivate
	}
	entry.UpdatedAt = now
}
