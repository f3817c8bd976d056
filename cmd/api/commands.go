package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/logging"
	tracing "docvault/internal/otel"
)

const shutdownTimeout = 10 * time.Second

// NewRootCommand returns the docvault command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "docvault",
		Short:         "Document and image upload service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(newServeCommand(), newMigrateCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			dialect, err := migration.ForDriver(cfg.Database.Driver)
			if err != nil {
				return err
			}
			return migration.EnsureMigrated(cmd.Context(), db, dialect, database.Target(cfg.Database))
		},
	}
}

// loadConfig reads and validates the environment, then installs the default logger.
func loadConfig() (*config.AppConfig, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetDefault(logging.New(os.Stdout, cfg.LogLevel))
	return cfg, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Component("main")

	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	srv, err := newServer(ctx, cfg, afero.NewOsFs(), reg)
	if err != nil {
		return err
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting", "port", cfg.Port, "db_driver", cfg.Database.Driver, "storage_backend", cfg.Storage.Backend)
		errCh <- srv.app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		logger.Info("server_stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err.Error())
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing_shutdown_failed", "error", err.Error())
	}
	logger.Info("server_stopped")
	return nil
}

// fiberConfig sizes the body limit above the file limit so the validator, not the
// transport, reports oversized files in the common case.
func fiberConfig(cfg *config.AppConfig, errHandler fiber.ErrorHandler) fiber.Config {
	return fiber.Config{
		AppName:               "docvault",
		BodyLimit:             int(cfg.Upload.MaxFileSize) + multipartOverhead,
		ErrorHandler:          errHandler,
		DisableStartupMessage: true,
	}
}
