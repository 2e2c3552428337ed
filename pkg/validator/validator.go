package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom tags understood by request structs.
const (
	TagSelfRole      = "selfrole"
	TagBookingStatus = "bookingstatus"
	TagNotBlank      = "notblank"
)

var selfServiceRoles = map[string]bool{"patient": true, "therapist": true}

var bookingStatuses = map[string]bool{
	"pending":   true,
	"confirmed": true,
	"completed": true,
	"cancelled": true,
}

// Funcs returns the custom validations keyed by tag.
func Funcs() map[string]validator.Func {
	return map[string]validator.Func{
		TagSelfRole: func(fl validator.FieldLevel) bool {
			return selfServiceRoles[fl.Field().String()]
		},
		TagBookingStatus: func(fl validator.FieldLevel) bool {
			return bookingStatuses[fl.Field().String()]
		},
		TagNotBlank: func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
	}
}

// Register installs Funcs on v.
func Register(v *validator.Validate) error {
	for tag, fn := range Funcs() {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}
	return nil
}

var messages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email",
	"min":            "is too short",
	"max":            "is too long",
	"gte":            "is too small",
	"lte":            "is too large",
	"oneof":          "is not an allowed value",
	TagSelfRole:      "must be patient or therapist",
	TagBookingStatus: "must be one of pending, confirmed, completed, cancelled",
	TagNotBlank:      "must not be blank",
}

// Describe turns binding errors into a single readable sentence.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field(), msg))
	}
	return strings.Join(parts, "; ")
}
