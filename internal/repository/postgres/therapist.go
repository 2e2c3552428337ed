package postgres

import (
	"context"
	"fmt"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type therapistRepository struct {
	BaseRepository
}

func NewTherapistRepository(base BaseRepository) repository.TherapistRepository {
	return &therapistRepository{base}
}

func (r *therapistRepository) UpsertProfile(ctx context.Context, p *model.TherapistProfile) error {
	query := `
		INSERT INTO therapist_profiles (
			user_id, specialties, languages, hourly_rate, bio, experience,
			license, verified, rating, total_reviews, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			specialties = EXCLUDED.specialties,
			languages = EXCLUDED.languages,
			hourly_rate = EXCLUDED.hourly_rate,
			bio = EXCLUDED.bio,
			experience = EXCLUDED.experience,
			license = EXCLUDED.license,
			verified = EXCLUDED.verified,
			rating = EXCLUDED.rating,
			total_reviews = EXCLUDED.total_reviews,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID,
		p.Specialties,
		p.Languages,
		p.HourlyRate,
		p.Bio,
		p.Experience,
		p.License,
		p.Verified,
		p.Rating,
		p.TotalReviews,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert therapist profile: %w", err)
	}
	return nil
}

func (r *therapistRepository) GetProfile(ctx context.Context, userID string) (*model.TherapistProfile, error) {
	query := `
		SELECT user_id, specialties, languages, hourly_rate, bio, experience,
			   license, verified, rating, total_reviews, updated_at
		FROM therapist_profiles
		WHERE user_id = $1
	`
	var p model.TherapistProfile
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *therapistRepository) List(ctx context.Context, filter model.TherapistFilter) ([]*model.Therapist, error) {
	query := `
		SELECT u.id, u.first_name, u.last_name, u.role, u.avatar,
			   COALESCE(p.specialties, '{}') AS specialties,
			   COALESCE(p.languages, '{}') AS languages,
			   COALESCE(p.hourly_rate, 0) AS hourly_rate,
			   COALESCE(p.bio, '') AS bio,
			   COALESCE(p.experience, 0) AS experience,
			   COALESCE(p.verified, FALSE) AS verified,
			   COALESCE(p.rating, 0) AS rating,
			   COALESCE(p.total_reviews, 0) AS total_reviews
		FROM users u
		LEFT JOIN therapist_profiles p ON p.user_id = u.id
		WHERE u.role = 'therapist' AND u.is_active = TRUE
	`
	args := []interface{}{}
	argCount := 1

	if filter.Specialty != "" {
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM unnest(p.specialties) s WHERE lower(s) = lower($%d))", argCount)
		args = append(args, filter.Specialty)
		argCount++
	}
	if filter.MinRate != nil {
		query += fmt.Sprintf(" AND COALESCE(p.hourly_rate, 0) >= $%d", argCount)
		args = append(args, *filter.MinRate)
		argCount++
	}
	if filter.MaxRate != nil {
		query += fmt.Sprintf(" AND COALESCE(p.hourly_rate, 0) <= $%d", argCount)
		args = append(args, *filter.MaxRate)
		argCount++
	}
	if filter.Verified != nil {
		query += fmt.Sprintf(" AND COALESCE(p.verified, FALSE) = $%d", argCount)
		args = append(args, *filter.Verified)
	}
	query += " ORDER BY rating DESC, u.last_name ASC, u.id ASC"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list therapists: %w", err)
	}
	defer rows.Close()

	out := []*model.Therapist{}
	for rows.Next() {
		var (
			t model.Therapist
			p model.TherapistProfile
		)
		if err := rows.Scan(
			&t.ID, &t.FirstName, &t.LastName, &t.Role, &t.Avatar,
			&p.Specialties, &p.Languages, &p.HourlyRate, &p.Bio, &p.Experience,
			&p.Verified, &p.Rating, &p.TotalReviews,
		); err != nil {
			return nil, fmt.Errorf("failed to scan therapist: %w", err)
		}
		p.UserID = t.ID
		t.Profile = &p
		out = append(out, &t)
	}
	return out, rows.Err()
}
