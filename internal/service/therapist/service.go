package therapist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Service is the therapist directory. Listings are cached in-process and
// flushed on every profile or account change.
type Service struct {
	users      repository.UserRepository
	therapists repository.TherapistRepository
	cache      *cache.Cache
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(users repository.UserRepository, therapists repository.TherapistRepository, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Service{
		users:      users,
		therapists: therapists,
		cache:      cache.New(ttl, 2*ttl),
		logger:     logger.With().Str("component", "therapist-directory").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, filter model.TherapistFilter) ([]*model.Therapist, error) {
	if filter.MinRate != nil && filter.MaxRate != nil && *filter.MinRate > *filter.MaxRate {
		return nil, apperrors.Validation("minRate must not exceed maxRate", nil)
	}

	key := cacheKey(filter)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]*model.Therapist), nil
	}

	list, err := s.therapists.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list therapists: %w", err)
	}
	if list == nil {
		list = []*model.Therapist{}
	}
	s.cache.SetDefault(key, list)
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Therapist, error) {
	user, err := s.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("therapist", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get therapist: %w", err)
	}
	if user.Role != model.RoleTherapist || !user.IsActive {
		return nil, apperrors.NotFound("therapist", nil)
	}

	profile, err := s.profile(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.Therapist{UserSummary: user.Summary(), Profile: profile}, nil
}

// UpdateProfile applies the non-nil fields of req. Verification and rating
// fields require an admin.
func (s *Service) UpdateProfile(ctx context.Context, actor policy.Actor, id string, req *model.UpdateProfileRequest) (*model.Therapist, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	target := policy.Target{Resource: policy.ResourceTherapistProfile, OwnerID: id}
	if err := policy.Authorize(actor, policy.ActionUpdate, target); err != nil {
		return nil, err
	}
	if req.Verified != nil || req.Rating != nil || req.TotalReviews != nil {
		if err := policy.Authorize(actor, policy.ActionVerify, target); err != nil {
			return nil, apperrors.Forbidden("only an admin can change verification or rating")
		}
	}

	p := current.Profile
	if req.Specialties != nil {
		p.Specialties = model.DedupeStrings(req.Specialties)
	}
	if req.Languages != nil {
		p.Languages = model.DedupeStrings(req.Languages)
	}
	if req.HourlyRate != nil {
		p.HourlyRate = *req.HourlyRate
	}
	if req.Bio != nil {
		p.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Experience != nil {
		p.Experience = *req.Experience
	}
	if req.License != nil {
		p.License = strings.TrimSpace(*req.License)
	}
	if req.Verified != nil {
		p.Verified = *req.Verified
	}
	if req.Rating != nil {
		p.Rating = *req.Rating
	}
	if req.TotalReviews != nil {
		p.TotalReviews = *req.TotalReviews
	}
	p.UpdatedAt = s.now()

	if err := s.therapists.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update therapist profile: %w", err)
	}
	s.Invalidate()

	s.logger.Info().Str("therapist_id", id).Str("actor_id", actor.ID).Msg("Therapist profile updated")
	return current, nil
}

func (s *Service) SetVerified(ctx context.Context, actor policy.Actor, id string, verified bool) (*model.Therapist, error) {
	return s.UpdateProfile(ctx, actor, id, &model.UpdateProfileRequest{Verified: &verified})
}

// Invalidate drops every cached listing.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

func (s *Service) profile(ctx context.Context, id string) (*model.TherapistProfile, error) {
	p, err := s.therapists.GetProfile(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.TherapistProfile{UserID: id, Specialties: []string{}, Languages: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get therapist profile: %w", err)
	}
	return p, nil
}

func cacheKey(f model.TherapistFilter) string {
	var b strings.Builder
	b.WriteString("therapists|")
	b.WriteString(strings.ToLower(strings.TrimSpace(f.Specialty)))
	if f.MinRate != nil {
		fmt.Fprintf(&b, "|min=%g", *f.MinRate)
	}
	if f.MaxRate != nil {
		fmt.Fprintf(&b, "|max=%g", *f.MaxRate)
	}
	if f.Verified != nil {
		fmt.Fprintf(&b, "|verified=%t", *f.Verified)
	}
	return b.String()
}
