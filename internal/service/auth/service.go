package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
	"github.com/mindease/mindease-api/pkg/auth"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/mindease/mindease-api/pkg/security"
	"github.com/rs/zerolog"
)

var errInvalidCredentials = apperrors.Unauthorized("invalid email or password")

// Directory is notified when a new therapist becomes listable.
type Directory interface {
	Invalidate()
}

type Service struct {
	userRepo      repository.UserRepository
	therapistRepo repository.TherapistRepository
	directory     Directory
	jwtSvc        auth.JWTService
	hasher        security.PasswordHasher
	logger        zerolog.Logger
	now           func() time.Time
}

// NewService wires registration and login. directory may be nil.
func NewService(userRepo repository.UserRepository, therapistRepo repository.TherapistRepository, directory Directory,
	jwtSvc auth.JWTService, hasher security.PasswordHasher, logger zerolog.Logger) *Service {
	return &Service{
		userRepo:      userRepo,
		therapistRepo: therapistRepo,
		directory:     directory,
		jwtSvc:        jwtSvc,
		hasher:        hasher,
		logger:        logger.With().Str("component", "auth").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a patient or therapist account. Therapists start with an empty profile.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	role := req.Role
	if role == "" {
		role = model.RolePatient
	}
	if role != model.RolePatient && role != model.RoleTherapist {
		return nil, apperrors.Validation("role must be patient or therapist", nil)
	}
	return s.createUser(ctx, req, role)
}

// CreateAdmin is used by operator tooling only.
func (s *Service) CreateAdmin(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, req *model.RegisterRequest, role model.Role) (*model.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return nil, apperrors.Validation(err.Error(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("an account with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if role == model.RoleTherapist {
		profile := &model.TherapistProfile{
			UserID:      user.ID,
			Specialties: []string{},
			Languages:   []string{},
			UpdatedAt:   now,
		}
		if err := s.therapistRepo.UpsertProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to create therapist profile: %w", err)
		}
		if s.directory != nil {
			s.directory.Invalidate()
		}
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("User registered")
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to compare password")
		}
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	now := s.now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update login timestamp: %w", err)
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(user.ID, string(user.Role), user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// Me returns the caller's account. A deactivated account is treated as signed out.
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}
	return user, nil
}
