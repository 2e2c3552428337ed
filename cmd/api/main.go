package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindease/mindease-api/internal/app"
	"github.com/mindease/mindease-api/internal/config"
	adminHandler "github.com/mindease/mindease-api/internal/handler/admin"
	authHandler "github.com/mindease/mindease-api/internal/handler/auth"
	bookingHandler "github.com/mindease/mindease-api/internal/handler/booking"
	chatHandler "github.com/mindease/mindease-api/internal/handler/chat"
	"github.com/mindease/mindease-api/internal/handler/health"
	journalHandler "github.com/mindease/mindease-api/internal/handler/journal"
	moodHandler "github.com/mindease/mindease-api/internal/handler/mood"
	prometheusHandler "github.com/mindease/mindease-api/internal/handler/prometheus"
	therapistHandler "github.com/mindease/mindease-api/internal/handler/therapist"
	"github.com/mindease/mindease-api/internal/handler/ws"
	"github.com/mindease/mindease-api/internal/middleware"
	"github.com/mindease/mindease-api/internal/realtime"
	"github.com/mindease/mindease-api/internal/router"
	adminService "github.com/mindease/mindease-api/internal/service/admin"
	authService "github.com/mindease/mindease-api/internal/service/auth"
	bookingService "github.com/mindease/mindease-api/internal/service/booking"
	chatService "github.com/mindease/mindease-api/internal/service/chat"
	companionService "github.com/mindease/mindease-api/internal/service/companion"
	eventService "github.com/mindease/mindease-api/internal/service/event"
	journalService "github.com/mindease/mindease-api/internal/service/journal"
	moodService "github.com/mindease/mindease-api/internal/service/mood"
	"github.com/mindease/mindease-api/internal/service/notification"
	therapistService "github.com/mindease/mindease-api/internal/service/therapist"
	"github.com/mindease/mindease-api/pkg/auth"
	"github.com/mindease/mindease-api/pkg/logger"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/mindease/mindease-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("MINDEASE_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	l := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := app.OpenStorage(ctx, cfg, l)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer storage.Close()
	repos := storage.Repos

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	// Realtime delivery: in-process, or fanned out over redis across instances.
	hub := realtime.NewHub(l, m)
	var emitter realtime.Emitter = realtime.NewLocalEmitter(hub)
	if cfg.Realtime.Relay == "redis" {
		broker, err := app.NewRedisBroker(ctx, cfg.Redis, l, m)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to create realtime relay broker")
		}
		defer broker.Close()
		storage.Checks["redis"] = broker

		relay := realtime.NewRelay(hub, broker, cfg.Realtime.Channel, l)
		go func() {
			if err := relay.Run(ctx); err != nil {
				l.Error().Err(err).Msg("Realtime relay stopped")
			}
		}()
		emitter = relay
	}
	notifier := notification.NewService(emitter, l)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL())
	directory := therapistService.NewService(repos.Users, repos.Therapists, cfg.Directory.CacheTTL, l)
	authSvc := authService.NewService(repos.Users, repos.Therapists, directory, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), l)

	var recorder eventService.Recorder
	if cfg.Outbox.Enabled {
		recorder = eventService.NewEventService(repos.Outbox)
	}
	bookingSvc := bookingService.NewService(repos.Bookings, repos.Users, repos.Therapists, notifier, recorder, m, l, bookingService.Options{
		RejectOverlaps: cfg.Booking.RejectOverlaps,
		MaxDuration:    cfg.Booking.MaxDuration,
	})
	chatSvc := chatService.NewService(repos.Chat, repos.Users, notifier, l)
	companionSvc := companionService.NewService(repos.Companion, nil, l)
	adminSvc := adminService.NewService(repos.Users, directory, l)

	authMW := middleware.NewAuthMiddleware(jwtSvc)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins

	r, err := router.NewRouter(authMW, router.Handlers{
		Health:  health.NewHandler(storage.Checks),
		Metrics: prometheusHandler.New(reg),
		Public: []router.Handler{
			authHandler.NewHandler(authSvc),
			therapistHandler.NewHandler(directory),
			ws.NewHandler(hub, jwtSvc, chatSvc, ws.Config{
				Client: realtime.ClientConfig{
					SendBuffer:     cfg.Realtime.SendBuffer,
					WriteTimeout:   cfg.Realtime.WriteTimeout,
					PingInterval:   cfg.Realtime.PingInterval,
					MaxMessageSize: cfg.Realtime.MaxMessageSize,
				},
				OriginPatterns: cfg.Realtime.AllowedOrigins,
			}, l),
		},
		Protected: []router.Handler{
			bookingHandler.NewHandler(bookingSvc),
			journalHandler.NewHandler(journalService.NewService(repos.Journal)),
			moodHandler.NewHandler(moodService.NewService(repos.Mood)),
			chatHandler.NewHandler(chatSvc, companionSvc),
			adminHandler.NewHandler(adminSvc, authMW),
		},
	}, router.RouterConfig{
		Mode:             cfg.Server.Mode,
		CORS:             corsConfig,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit: middleware.RateLimiterConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		MetricsPrefix: cfg.Metrics.Namespace,
	}, reg)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create router")
	}
	r.Setup()

	// WriteTimeout stays unset so it cannot cut long-lived WebSocket sessions.
	// Request contexts derive from ctx, so a shutdown signal also ends open sockets.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       2 * cfg.Server.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		l.Info().Int("port", cfg.Server.Port).Str("storage", cfg.Storage.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}
	l.Info().Msg("Server exited properly")
}
