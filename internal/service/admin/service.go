package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/rs/zerolog"
)

// Directory is the part of the therapist directory admins drive.
type Directory interface {
	SetVerified(ctx context.Context, actor policy.Actor, id string, verified bool) (*model.Therapist, error)
	Invalidate()
}

type Service struct {
	users     repository.UserRepository
	directory Directory
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(users repository.UserRepository, directory Directory, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		directory: directory,
		logger:    logger.With().Str("component", "admin").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListUsers(ctx context.Context, actor policy.Actor, role model.Role) ([]*model.User, error) {
	if err := policy.Authorize(actor, policy.ActionList, policy.Target{Resource: policy.ResourceUser}); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown role %q", role), nil)
	}
	users, err := s.users.List(ctx, model.UserFilter{Role: role})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// SetActive activates or deactivates an account. Admins cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor policy.Actor, id string, active bool) (*model.User, error) {
	if err := policy.Authorize(actor, policy.ActionUpdate, policy.Target{Resource: policy.ResourceUser, OwnerID: id}); err != nil {
		return nil, err
	}
	if id == actor.ID && !active {
		return nil, apperrors.Validation("you cannot deactivate your own account", nil)
	}

	user, err := s.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsActive == active {
		return user, nil
	}

	user.IsActive = active
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user.Role == model.RoleTherapist {
		s.directory.Invalidate()
	}

	s.logger.Info().
		Str("user_id", id).
		Str("actor_id", actor.ID).
		Bool("active", active).
		Msg("User activation changed")
	return user, nil
}

func (s *Service) VerifyTherapist(ctx context.Context, actor policy.Actor, id string, verified bool) (*model.Therapist, error) {
	return s.directory.SetVerified(ctx, actor, id, verified)
}
