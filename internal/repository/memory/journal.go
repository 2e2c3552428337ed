package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type JournalStore struct {
	mu      sync.RWMutex
	entries map[string]*model.JournalEntry
}

func NewJournalStore() *JournalStore {
	return &JournalStore{
		entries: make(map[string]*model.JournalEntry),
	}
}

var _ repository.JournalRepository = (*JournalStore)(nil)

func copyEntry(e *model.JournalEntry) *model.JournalEntry {
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	if e.Mood != nil {
		m := *e.Mood
		cp.Mood = &m
	}
	return &cp
}

func (s *JournalStore) Create(_ context.Context, entry *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.ID] = copyEntry(entry)
	return nil
}

func (s *JournalStore) Get(_ context.Context, id string) (*model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *JournalStore) Update(_ context.Context, entry *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return repository.ErrNotFound
	}
	entry.UpdatedAt = time.Now().UTC()
	s.entries[entry.ID] = copyEntry(entry)
	return nil
}

func (s *JournalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *JournalStore) ListByUser(_ context.Context, userID string, limit int) ([]*model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.JournalEntry, 0)
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, copyEntry(e))
		}
	}
	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MoodStore struct {
	mu      sync.RWMutex
	entries []*model.MoodEntry
}

func NewMoodStore() *MoodStore {
	return &MoodStore{}
}

var _ repository.MoodRepository = (*MoodStore)(nil)

func (s *MoodStore) Create(_ context.Context, entry *model.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MoodStore) ListByUser(_ context.Context, userID string, since time.Time) ([]*model.MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.MoodEntry, 0)
	for _, e := range s.entries {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
