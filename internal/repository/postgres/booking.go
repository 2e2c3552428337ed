package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

const bookingColumns = `id, patient_id, therapist_id, session_date, duration, status,
	notes, price, cancel_reason, created_at, updated_at`

// Active bookings of $1 intersecting [$2, $3).
const overlapCondition = `therapist_id = $1
		AND status IN ('pending', 'confirmed')
		AND session_date < $3
		AND session_date + (duration * INTERVAL '1 minute') > $2`

func insertBooking(ctx context.Context, db sqlx.ExecerContext, b *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, patient_id, therapist_id, session_date, duration,
			status, notes, price, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.ExecContext(ctx, query,
		b.ID,
		b.PatientID,
		b.TherapistID,
		b.SessionDate,
		b.Duration,
		b.Status,
		b.Notes,
		b.Price,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapError(err))
	}
	return nil
}

func (r *bookingRepository) Create(ctx context.Context, b *model.Booking) error {
	return insertBooking(ctx, r.db, b)
}

// CreateIfFree serialises writers for one therapist with a transaction-scoped
// advisory lock, so API instances sharing the database cannot double-book.
func (r *bookingRepository) CreateIfFree(ctx context.Context, b *model.Booking) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.TherapistID); err != nil {
			return fmt.Errorf("failed to lock therapist schedule: %w", err)
		}

		var clashes int
		query := `SELECT COUNT(*) FROM bookings WHERE ` + overlapCondition
		if err := tx.GetContext(ctx, &clashes, query, b.TherapistID, b.SessionDate, b.EndsAt()); err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		if clashes > 0 {
			return repository.ErrOverlap
		}
		return insertBooking(ctx, tx, b)
	})
}

func (r *bookingRepository) Get(ctx context.Context, id string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var b model.Booking
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, mapError(err)
	}
	b.SessionDate = b.SessionDate.UTC()
	return &b, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, cancelReason *string) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $1, cancel_reason = COALESCE($2, cancel_reason), updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + bookingColumns

	var b model.Booking
	err := r.db.GetContext(ctx, &b, query, to, cancelReason, time.Now().UTC(), id, from)
	if err == nil {
		b.SessionDate = b.SessionDate.UTC()
		return &b, nil
	}
	if err = mapError(err); err != repository.ErrNotFound {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	// Distinguish a missing row from a concurrent status change.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrStale
}

// buildListQuery renders filter as a parameterised SELECT.
func buildListQuery(filter model.BookingFilter) (string, []interface{}) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND (patient_id = $%d OR therapist_id = $%d)", argCount, argCount)
		args = append(args, filter.UserID)
		argCount++
	}
	if filter.Upcoming {
		query += fmt.Sprintf(" AND session_date > $%d", argCount)
		args = append(args, filter.Now)
		argCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filter.Status)
	}
	query += " ORDER BY session_date ASC, id ASC"
	return query, args
}

func (r *bookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	query, args := buildListQuery(filter)

	bookings := []*model.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	for _, b := range bookings {
		b.SessionDate = b.SessionDate.UTC()
	}
	return bookings, nil
}

func (r *bookingRepository) FindOverlapping(ctx context.Context, therapistID string, start, end time.Time) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + overlapCondition

	bookings := []*model.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, therapistID, start, end); err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	for _, b := range bookings {
		b.SessionDate = b.SessionDate.UTC()
	}
	return bookings, nil
}
