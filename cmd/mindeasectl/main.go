package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindease/mindease-api/internal/app"
	"github.com/mindease/mindease-api/internal/config"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository/postgres"
	authService "github.com/mindease/mindease-api/internal/service/auth"
	"github.com/mindease/mindease-api/pkg/auth"
	"github.com/mindease/mindease-api/pkg/logger"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/mindease/mindease-api/pkg/security"
	"github.com/mindease/mindease-api/pkg/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var configFile string
	e := &env{}

	root := &cobra.Command{
		Use:           "mindeasectl",
		Short:         "Operator tooling for the MindEase API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", Output: os.Stderr})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("MINDEASE_CONFIG_FILE"), "path to config.yml")

	root.AddCommand(newMigrateCmd(e))
	root.AddCommand(newCreateAdminCmd(e))
	root.AddCommand(newOutboxCmd(e))
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := postgres.NewDB(cmd.Context(), e.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newCreateAdminCmd(e *env) *cobra.Command {
	var req model.RegisterRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := app.OpenStorage(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			jwtSvc := auth.NewJWTService(e.cfg.JWT.Secret, e.cfg.JWT.Issuer, e.cfg.JWT.TTL())
			svc := authService.NewService(storage.Repos.Users, storage.Repos.Therapists, nil, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), e.logger)

			user, err := svc.CreateAdmin(cmd.Context(), &req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&req.Password, "password", "", "admin password, at least 8 characters")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "User", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newOutboxCmd(e *env) *cobra.Command {
	outbox := &cobra.Command{Use: "outbox", Short: "Inspect and flush the event outbox"}

	outbox.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "Print the number of unpublished events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := app.OpenStorage(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			n, err := storage.Repos.Outbox.CountPending(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", n)
			return nil
		},
	})

	outbox.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Publish pending events until none are left",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			storage, err := app.OpenStorage(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			m := metrics.NewMetrics(e.cfg.Metrics.Namespace, prometheus.NewRegistry())
			broker, err := app.NewOutboxBroker(ctx, e.cfg, e.logger, m)
			if err != nil {
				return err
			}
			defer broker.Close()

			processor, err := worker.NewOutboxProcessor(storage.Repos.Outbox, broker, worker.OutboxProcessorConfig{
				BatchSize:     e.cfg.Outbox.BatchSize,
				PollInterval:  e.cfg.Outbox.PollInterval,
				RetryAttempts: e.cfg.Outbox.RetryAttempts,
				RetryDelay:    e.cfg.Outbox.RetryDelay,
				MaxRetries:    e.cfg.Outbox.MaxRetries,
			}, e.logger, m)
			if err != nil {
				return err
			}

			total := 0
			for {
				n, err := processor.ProcessOnce(ctx)
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
				total += n
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %d events\n", total)
			return nil
		},
	})
	return outbox
}
