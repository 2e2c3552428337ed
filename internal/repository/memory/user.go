package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type UserStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}

	cp := *user
	s.users[user.ID] = &cp
	s.byEmail[email] = user.ID
	return nil
}

func (s *UserStore) Get(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *UserStore) Update(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *user
	// Email and role are fixed at registration.
	cp.Email = existing.Email
	cp.Role = existing.Role
	cp.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = &cp
	return nil
}

func (s *UserStore) List(_ context.Context, filter model.UserFilter) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
