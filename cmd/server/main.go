// Package main is the entry point for the weather diary server.
//
// The main package only reads configuration, builds the logger and hands off
// to internal/server. Two commands are available:
//
//	server serve    run the HTTP API and the daily weather job (default)
//	server ingest   fetch and store today's weather once, then exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/weather-diary/internal/config"
	"github.com/sakif/weather-diary/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Weather diary API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled weather ingest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(envFile)
			if err != nil {
				return err
			}
			return runServe(cfg, logger)
		},
	}

	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and store the current weather once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(envFile)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, logger)
		},
	}

	root.AddCommand(serve, ingest)
	// Bare "server" behaves like "server serve".
	root.RunE = serve.RunE

	return root
}

// setup loads configuration and builds the process logger. Errors are printed
// here because the commands silence cobra's own error output.
func setup(envFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY not set; weather lookups will fail")
	}

	// 0755 = owner rwx, others rx.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		return nil, nil, err
	}

	return cfg, logger, nil
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	svc, db, err := server.NewService(cfg, logger)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	snapshot, err := svc.IngestWeather(ctx)
	if err != nil {
		logger.Error("weather ingest failed", slog.String("error", err.Error()))
		return err
	}

	logger.Info("weather stored",
		slog.String("id", snapshot.ID),
		slog.String("date", snapshot.Date.String()),
		slog.String("condition", snapshot.Condition),
		slog.Float64("temperature", snapshot.Temperature),
	)
	return nil
}
