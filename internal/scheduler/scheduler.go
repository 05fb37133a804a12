// Package scheduler runs the daily weather ingestion on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/sakif/weather-diary/internal/model"
)

const (
	// DefaultCron fires at 01:00 server local time every day.
	DefaultCron = "0 1 * * *"

	runTimeout = 30 * time.Second
)

// Ingester stores one weather snapshot for today.
type Ingester interface {
	IngestWeather(ctx context.Context) (*model.WeatherSnapshot, error)
}

// Scheduler triggers an Ingester on a cron expression.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  Ingester
	cron      string
	logger    *slog.Logger
	job       *gocron.Job
}

// New creates a Scheduler in the given location. An empty expr uses DefaultCron.
func New(expr string, loc *time.Location, ingester Ingester, logger *slog.Logger) *Scheduler {
	if expr == "" {
		expr = DefaultCron
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		ingester:  ingester,
		cron:      expr,
		logger:    logger,
	}
}

// Start registers the ingestion job and starts the scheduler in the background.
// Runs never overlap: a run still in progress makes the next trigger skip.
func (s *Scheduler) Start() error {
	job, err := s.scheduler.Cron(s.cron).SingletonMode().Do(s.run)
	if err != nil {
		return fmt.Errorf("scheduling weather ingestion %q: %w", s.cron, err)
	}
	s.job = job

	s.scheduler.StartAsync()
	s.logger.Info("weather ingestion scheduled",
		slog.String("cron", s.cron),
		slog.Time("next_run", job.NextRun()),
	)
	return nil
}

// Stop stops the scheduler. Future runs are cancelled.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// NextRun reports when the job fires next. Zero before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// run performs one ingestion. Failures are logged and the day is skipped;
// there is no retry until the next trigger.
func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("scheduler: running weather ingestion")

	snapshot, err := s.ingester.IngestWeather(ctx)
	if err != nil {
		s.logger.Error("scheduler: weather ingestion failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}

	s.logger.Info("scheduler: weather ingestion completed",
		slog.String("date", snapshot.Date.String()),
		slog.Duration("duration", time.Since(start)),
	)
}
