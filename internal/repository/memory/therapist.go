package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

// TherapistStore keeps profiles and reads user records from the user store for directory listings.
type TherapistStore struct {
	mu       sync.RWMutex
	profiles map[string]*model.TherapistProfile
	users    *UserStore
}

func NewTherapistStore(users *UserStore) *TherapistStore {
	return &TherapistStore{
		profiles: make(map[string]*model.TherapistProfile),
		users:    users,
	}
}

var _ repository.TherapistRepository = (*TherapistStore)(nil)

func copyProfile(p *model.TherapistProfile) *model.TherapistProfile {
	cp := *p
	cp.Specialties = append([]string(nil), p.Specialties...)
	cp.Languages = append([]string(nil), p.Languages...)
	return &cp
}

func (s *TherapistStore) UpsertProfile(_ context.Context, profile *model.TherapistProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func (s *TherapistStore) GetProfile(_ context.Context, userID string) (*model.TherapistProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyProfile(p), nil
}

func (s *TherapistStore) List(ctx context.Context, filter model.TherapistFilter) ([]*model.Therapist, error) {
	active := true
	users, err := s.users.List(ctx, model.UserFilter{Role: model.RoleTherapist, Active: &active})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Therapist, 0, len(users))
	for _, u := range users {
		p, ok := s.profiles[u.ID]
		if !ok {
			p = &model.TherapistProfile{UserID: u.ID}
		}
		if filter.Specialty != "" && !p.HasSpecialty(filter.Specialty) {
			continue
		}
		if filter.MinRate != nil && p.HourlyRate < *filter.MinRate {
			continue
		}
		if filter.MaxRate != nil && p.HourlyRate > *filter.MaxRate {
			continue
		}
		if filter.Verified != nil && p.Verified != *filter.Verified {
			continue
		}
		out = append(out, &model.Therapist{UserSummary: u.Summary(), Profile: copyProfile(p)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Profile.Rating != out[j].Profile.Rating {
			return out[i].Profile.Rating > out[j].Profile.Rating
		}
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
