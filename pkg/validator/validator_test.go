package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email  string `validate:"required,email"`
	Role   string `validate:"omitempty,selfrole"`
	Status string `validate:"omitempty,bookingstatus"`
	Title  string `validate:"omitempty,notblank"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, Register(v))
	return v
}

func TestSelfRole(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(signup{Email: "a@b.co", Role: "therapist"}))
	assert.NoError(t, v.Struct(signup{Email: "a@b.co"}))

	err := v.Struct(signup{Email: "a@b.co", Role: "admin"})
	require.Error(t, err)
	assert.Equal(t, "Role must be patient or therapist", Describe(err))
}

func TestBookingStatusAndBlank(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(signup{Email: "a@b.co", Status: "confirmed"}))
	err := v.Struct(signup{Email: "a@b.co", Status: "done", Title: "   "})
	require.Error(t, err)
	assert.Contains(t, Describe(err), "Status must be one of")
	assert.Contains(t, Describe(err), "Title must not be blank")
}

func TestDescribeNonValidationError(t *testing.T) {
	assert.Equal(t, "invalid request body", Describe(errors.New("unexpected EOF")))
}
