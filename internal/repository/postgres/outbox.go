package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ClaimPending flips the batch to processing in the same statement that locks
// it, so the claim survives after the row locks are released. Rows left in
// processing past the lease are picked up again.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', updated_at = $1
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE (status = 'pending' AND (retry_at IS NULL OR retry_at <= $1))
			OR (status = 'processing' AND updated_at <= $3)
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count,
			retry_at, created_at, updated_at, processed_at
	`
	events := []*model.OutboxEvent{}
	leaseExpired := now.Add(-repository.OutboxClaimLease)
	if err := r.db.SelectContext(ctx, &events, query, now, limit, leaseExpired); err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	// RETURNING does not keep the subquery's order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'processed', error_message = NULL, processed_at = $1, updated_at = $1
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, errMsg string, retryAt *time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = CASE WHEN $3::timestamptz IS NULL THEN 'failed' ELSE 'pending' END,
			error_message = $1,
			retry_count = retry_count + 1,
			retry_at = $3,
			updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, errMsg, id, retryAt)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM outbox_events WHERE status IN ('pending', 'processing')`); err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
