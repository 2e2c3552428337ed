package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
	"github.com/mindease/mindease-api/pkg/messaging"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is the number of failed polls after which an event is marked failed.
	MaxRetries int
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.RetryDelay < 0 {
		return nil, fmt.Errorf("retry delay must not be negative")
	}
	if config.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger.With().Str("component", "outbox-processor").Logger(),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Msg("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Failed to process events")
			}
		}
	}
}

// ProcessOnce publishes one batch and returns how many events were published.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Int("retry_count", event.RetryCount).
				Msg("Failed to process event")
			continue
		}
		published++
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(pending))
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, event.Payload)
	})

	if err != nil {
		errStr := err.Error()
		if event.RetryCount+1 >= p.config.MaxRetries {
			p.metrics.OutboxEventsFailed.Inc()
			if updateErr := p.repo.MarkFailed(ctx, event.ID, errStr, nil); updateErr != nil {
				p.logger.Error().Err(updateErr).Str("event_id", event.ID).Msg("Failed to update event status")
			}
			return err
		}

		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		retryAt := p.now().Add(backoff(p.config.PollInterval, event.RetryCount))
		if updateErr := p.repo.MarkFailed(ctx, event.ID, errStr, &retryAt); updateErr != nil {
			p.logger.Error().Err(updateErr).Str("event_id", event.ID).Msg("Failed to update event status")
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID, p.now()); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// backoff doubles the poll interval per previous failure, capped at 64x.
func backoff(base time.Duration, retries int) time.Duration {
	if retries > 6 {
		retries = 6
	}
	return base << uint(retries)
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
