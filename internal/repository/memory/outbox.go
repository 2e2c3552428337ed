package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type OutboxStore struct {
	mu     sync.Mutex
	events map[string]*model.OutboxEvent
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{
		events: make(map[string]*model.OutboxEvent),
	}
}

var _ repository.OutboxRepository = (*OutboxStore)(nil)

func (s *OutboxStore) Create(_ context.Context, event *model.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func claimable(e *model.OutboxEvent, now time.Time) bool {
	switch e.Status {
	case model.OutboxStatusPending:
		return e.RetryAt == nil || !e.RetryAt.After(now)
	case model.OutboxStatusProcessing:
		return !e.UpdatedAt.After(now.Add(-repository.OutboxClaimLease))
	}
	return false
}

func (s *OutboxStore) ClaimPending(_ context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*model.OutboxEvent
	for _, e := range s.events {
		if claimable(e, now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *OutboxStore) MarkProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &at
	e.ErrorMessage = nil
	e.UpdatedAt = at
	return nil
}

func (s *OutboxStore) MarkFailed(_ context.Context, id string, errMsg string, retryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.RetryAt = retryAt
	e.Status = model.OutboxStatusPending
	if retryAt == nil {
		e.Status = model.OutboxStatusFailed
	}
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *OutboxStore) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, e := range s.events {
		if e.Status == model.OutboxStatusPending || e.Status == model.OutboxStatusProcessing {
			n++
		}
	}
	return n, nil
}

func (s *OutboxStore) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, e := range s.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}

// Get is used by tests and tooling to inspect a single event.
func (s *OutboxStore) Get(id string) (*model.OutboxEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}
