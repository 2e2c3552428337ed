package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mindease/mindease-api/internal/app"
	"github.com/mindease/mindease-api/internal/config"
	"github.com/mindease/mindease-api/internal/handler/health"
	prometheusHandler "github.com/mindease/mindease-api/internal/handler/prometheus"
	internalWorker "github.com/mindease/mindease-api/internal/worker"
	"github.com/mindease/mindease-api/pkg/logger"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/mindease/mindease-api/pkg/worker"
)

func setupHealthCheck(port int, checks map[string]health.Checker, reg *prometheus.Registry, l zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	prometheusHandler.New(reg).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error().Err(err).Msg("Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig(os.Getenv("MINDEASE_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	l := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
		With().Str("process", "worker").Logger()

	// The outbox lives in the API's database; an in-memory store is not shared.
	if cfg.Storage.Driver != "postgres" {
		l.Fatal().Str("driver", cfg.Storage.Driver).Msg("The worker requires postgres storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := app.OpenStorage(ctx, cfg, l)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer storage.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	broker, err := app.NewOutboxBroker(ctx, cfg, l, m)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create message broker")
	}
	defer broker.Close()
	storage.Checks[cfg.Outbox.Broker] = broker

	processor, err := worker.NewOutboxProcessor(
		storage.Repos.Outbox,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			MaxRetries:    cfg.Outbox.MaxRetries,
		},
		l,
		m,
	)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create outbox processor")
	}

	relay := internalWorker.NewEmailRelay(broker, app.NewEmailSender(cfg.SMTP, l), l)
	cleanup := internalWorker.NewOutboxCleanupWorker(storage.Repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, m, l)

	healthSrv := setupHealthCheck(cfg.Worker.HealthPort, storage.Checks, reg, l)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := relay.Run(ctx); err != nil {
			l.Error().Err(err).Msg("Email relay stopped")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	l.Info().Str("broker", cfg.Outbox.Broker).Bool("smtp", cfg.SMTP.Enabled).Msg("Worker started")
	<-ctx.Done()
	l.Info().Msg("Shutting down...")

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Health check server forced to shutdown")
	}
}
