package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mindease/mindease-api/internal/repository"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/rs/zerolog"
)

// OutboxCleanupWorker deletes processed outbox events past the retention window.
type OutboxCleanupWorker struct {
	repo            repository.OutboxRepository
	retention       time.Duration
	cleanupInterval time.Duration
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	now             func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, cleanupInterval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		metrics:         m,
		logger:          logger.With().Str("component", "outbox-cleanup").Logger(),
		now:             time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Outbox cleanup failed")
			}
		}
	}
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox events: %w", err)
	}
	if w.metrics != nil {
		w.metrics.OutboxEventsCleaned.Add(float64(rows))
	}
	if rows > 0 {
		w.logger.Info().Int64("rows", rows).Time("cutoff", cutoff).Msg("Cleaned up processed outbox events")
	}
	return rows, nil
}
