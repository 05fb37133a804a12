// Package server sets up the HTTP server, the router, the scheduler and all
// route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
//   - which URL patterns map to which handler functions
//   - what middleware runs in front of them
//   - how the HTTP server and the daily weather job start and stop
//
// COMPOSITION ROOT:
// main.go loads config.Config and passes it to New, which creates
//
//	sqlite.DB ──────┐
//	                ├─ service.DiaryService ─┬─ handler.DiaryHandler → chi router
//	weather.Fetcher ┘                        └─ scheduler.Scheduler
//
// NewService builds only the left half; the ingest command uses it to run one
// ingestion without the HTTP server or the scheduler.
//
// SHUTDOWN:
// Start blocks until SIGINT/SIGTERM, drains in-flight requests for up to 30s,
// stops the scheduler and closes the database, in that order.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/weather-diary/internal/config"
	"github.com/sakif/weather-diary/internal/handler"
	"github.com/sakif/weather-diary/internal/middleware"
	sqliteRepo "github.com/sakif/weather-diary/internal/repository/sqlite"
	"github.com/sakif/weather-diary/internal/scheduler"
	"github.com/sakif/weather-diary/internal/service"
	"github.com/sakif/weather-diary/internal/weather"
)

// Server owns the database, the scheduler and the HTTP router.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	service   *service.DiaryService
	scheduler *scheduler.Scheduler
}

// NewService builds the diary service and returns it with the database it
// owns. The caller must close the database.
func NewService(cfg *config.Config, logger *slog.Logger) (*service.DiaryService, *sqliteRepo.DB, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	fetcher := weather.NewFetcher(weather.Config{
		BaseURL: cfg.WeatherBaseURL,
		City:    cfg.WeatherCity,
		APIKey:  cfg.OpenWeatherAPIKey,
	}, &http.Client{Timeout: cfg.WeatherHTTPTimeout}, logger)

	return service.NewDiaryService(db, fetcher, logger), db, nil
}

// New creates a Server from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	svc, db, err := NewService(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		service:   svc,
		scheduler: scheduler.New(cfg.IngestCron, time.Local, svc, logger),
	}
	s.setupRoutes()

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// GET    /health
// POST   /api/diaries
// GET    /api/diaries?date=D | ?start=S&end=E
// PUT    /api/diaries/{date}
// DELETE /api/diaries/{date}
// GET    /api/weather/{date}
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	// Panics end up here as a generic 500.
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	diaryHandler := handler.NewDiaryHandler(s.service, s.logger)
	s.router.Route("/api", diaryHandler.Routes)
}

// Start runs the scheduler and the HTTP server until SIGINT/SIGTERM, then
// shuts both down and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer s.scheduler.Stop()

	// No WriteTimeout: creating a diary can wait on the weather provider.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("city", s.config.WeatherCity),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database without starting the server.
func (s *Server) Close() error {
	return s.db.Close()
}
