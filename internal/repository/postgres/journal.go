package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type journalRepository struct {
	BaseRepository
}

func NewJournalRepository(base BaseRepository) repository.JournalRepository {
	return &journalRepository{base}
}

const journalColumns = `id, user_id, title, content, mood, tags, is_private, created_at, updated_at`

func (r *journalRepository) Create(ctx context.Context, e *model.JournalEntry) error {
	query := `
		INSERT INTO journal_entries (` + journalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Title, e.Content, e.Mood, e.Tags, e.IsPrivate, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create journal entry: %w", err)
	}
	return nil
}

func (r *journalRepository) Get(ctx context.Context, id string) (*model.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE id = $1`

	var e model.JournalEntry
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		return nil, mapError(err)
	}
	return &e, nil
}

func (r *journalRepository) Update(ctx context.Context, e *model.JournalEntry) error {
	query := `
		UPDATE journal_entries
		SET title = $1, content = $2, mood = $3, tags = $4, is_private = $5, updated_at = $6
		WHERE id = $7
	`
	e.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		e.Title, e.Content, e.Mood, e.Tags, e.IsPrivate, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update journal entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *journalRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *journalRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.JournalEntry, error) {
	query := `
		SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	entries := []*model.JournalEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}

type moodRepository struct {
	BaseRepository
}

func NewMoodRepository(base BaseRepository) repository.MoodRepository {
	return &moodRepository{base}
}

func (r *moodRepository) Create(ctx context.Context, e *model.MoodEntry) error {
	query := `
		INSERT INTO mood_entries (id, user_id, mood, energy, anxiety, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Mood, e.Energy, e.Anxiety, e.Notes, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mood entry: %w", err)
	}
	return nil
}

func (r *moodRepository) ListByUser(ctx context.Context, userID string, since time.Time) ([]*model.MoodEntry, error) {
	query := `
		SELECT id, user_id, mood, energy, anxiety, notes, created_at
		FROM mood_entries
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	entries := []*model.MoodEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, userID, since); err != nil {
		return nil, fmt.Errorf("failed to list mood entries: %w", err)
	}
	return entries, nil
}
