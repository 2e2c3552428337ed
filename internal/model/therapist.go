package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type TherapistProfile struct {
	UserID       string         `db:"user_id" json:"userId"`
	Specialties  pq.StringArray `db:"specialties" json:"specialties"`
	Languages    pq.StringArray `db:"languages" json:"languages"`
	HourlyRate   float64        `db:"hourly_rate" json:"hourlyRate"`
	Bio          string         `db:"bio" json:"bio"`
	Experience   int            `db:"experience" json:"experience"`
	License      string         `db:"license" json:"license,omitempty"`
	Verified     bool           `db:"verified" json:"verified"`
	Rating       float64        `db:"rating" json:"rating"`
	TotalReviews int            `db:"total_reviews" json:"totalReviews"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// HasSpecialty matches case-insensitively.
func (p *TherapistProfile) HasSpecialty(s string) bool {
	for _, sp := range p.Specialties {
		if strings.EqualFold(sp, s) {
			return true
		}
	}
	return false
}

// Therapist is a directory entry: the user joined with its profile.
type Therapist struct {
	UserSummary
	Profile *TherapistProfile `json:"profile"`
}

type TherapistFilter struct {
	Specialty string
	MinRate   *float64
	MaxRate   *float64
	Verified  *bool
}

type UpdateProfileRequest struct {
	Specialties []string `json:"specialties" binding:"omitempty,max=20,dive,min=1,max=60"`
	Languages   []string `json:"languages" binding:"omitempty,max=10,dive,min=1,max=40"`
	HourlyRate  *float64 `json:"hourlyRate" binding:"omitempty,gte=0"`
	Bio         *string  `json:"bio" binding:"omitempty,max=2000"`
	Experience  *int     `json:"experience" binding:"omitempty,gte=0,lte=80"`
	License     *string  `json:"license" binding:"omitempty,max=100"`

	// Admin only.
	Verified     *bool    `json:"verified"`
	Rating       *float64 `json:"rating" binding:"omitempty,gte=0,lte=5"`
	TotalReviews *int     `json:"totalReviews" binding:"omitempty,gte=0"`
}

type VerifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// DedupeStrings trims entries and removes empty and repeated ones, keeping first occurrence order.
func DedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
