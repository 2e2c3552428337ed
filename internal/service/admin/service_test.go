package admin

import (
	"context"
	"testing"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository/memory"
	"github.com/mindease/mindease-api/internal/service/therapist"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	root    = policy.Actor{ID: "a1", Role: model.RoleAdmin}
	patient = policy.Actor{ID: "p1", Role: model.RolePatient}
)

func setup(t *testing.T) (*Service, *therapist.Service) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Now().UTC()
	for _, u := range []*model.User{
		{ID: "a1", Email: "a1@example.com", FirstName: "Ada", Role: model.RoleAdmin, IsActive: true, CreatedAt: now},
		{ID: "p1", Email: "p1@example.com", FirstName: "Pat", Role: model.RolePatient, IsActive: true, CreatedAt: now},
		{ID: "t1", Email: "t1@example.com", FirstName: "Tess", Role: model.RoleTherapist, IsActive: true, CreatedAt: now},
	} {
		require.NoError(t, store.Users.Create(ctx, u))
	}
	directory := therapist.NewService(store.Users, store.Therapists, time.Minute, zerolog.Nop())
	return NewService(store.Users, directory, zerolog.Nop()), directory
}

func TestListUsers(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	all, err := svc.ListUsers(ctx, root, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	therapists, err := svc.ListUsers(ctx, root, model.RoleTherapist)
	require.NoError(t, err)
	require.Len(t, therapists, 1)
	assert.Equal(t, "t1", therapists[0].ID)

	_, err = svc.ListUsers(ctx, root, "nurse")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.ListUsers(ctx, patient, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestDeactivateTherapistHidesFromDirectory(t *testing.T) {
	svc, directory := setup(t)
	ctx := context.Background()

	listed, err := directory.List(ctx, model.TherapistFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	u, err := svc.SetActive(ctx, root, "t1", false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	listed, err = directory.List(ctx, model.TherapistFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = svc.SetActive(ctx, root, "a1", false)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.SetActive(ctx, patient, "t1", true)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.SetActive(ctx, root, "missing", true)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestVerifyTherapist(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	th, err := svc.VerifyTherapist(ctx, root, "t1", true)
	require.NoError(t, err)
	assert.True(t, th.Profile.Verified)

	_, err = svc.VerifyTherapist(ctx, patient, "t1", true)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}
