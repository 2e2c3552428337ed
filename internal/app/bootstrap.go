// Package app holds the wiring shared by the API, the worker and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mindease/mindease-api/internal/config"
	"github.com/mindease/mindease-api/internal/email"
	"github.com/mindease/mindease-api/internal/handler/health"
	"github.com/mindease/mindease-api/internal/repository"
	"github.com/mindease/mindease-api/internal/repository/memory"
	"github.com/mindease/mindease-api/internal/repository/postgres"
	"github.com/mindease/mindease-api/pkg/messaging"
	"github.com/mindease/mindease-api/pkg/messaging/rabbitmq"
	"github.com/mindease/mindease-api/pkg/messaging/redis"
	"github.com/mindease/mindease-api/pkg/metrics"
)

// Storage is an opened repository set plus what readiness should ping.
type Storage struct {
	Repos  *repository.Repositories
	DB     *sqlx.DB
	Checks map[string]health.Checker
}

func (s *Storage) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// OpenStorage connects the configured driver. Postgres is migrated when
// auto_migrate is set.
func OpenStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn().Msg("Using in-memory storage, data is lost on restart")
		return &Storage{
			Repos:  memory.NewStore().Repositories(),
			Checks: map[string]health.Checker{},
		}, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Storage{
		Repos:  postgres.NewRepositories(db),
		DB:     db,
		Checks: map[string]health.Checker{"database": health.CheckerFunc(db.PingContext)},
	}, nil
}

// PingBroker is a broker readiness can check.
type PingBroker interface {
	messaging.Broker
	Ping(ctx context.Context) error
}

func NewRedisBroker(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger, m *metrics.Metrics) (PingBroker, error) {
	b, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return b, nil
}

// NewOutboxBroker opens the broker domain events are published on.
func NewOutboxBroker(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (PingBroker, error) {
	if cfg.Outbox.Broker == "rabbitmq" {
		b, err := rabbitmq.NewBroker(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		return b, nil
	}
	return NewRedisBroker(ctx, cfg.Redis, logger, m)
}

// NewEmailSender returns an SMTP sender, or a logging stand-in when SMTP is off.
func NewEmailSender(cfg config.SMTPConfig, logger zerolog.Logger) email.Sender {
	if !cfg.Enabled {
		return email.NewLogSender(logger)
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}
