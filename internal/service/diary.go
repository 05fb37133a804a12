// Package service contains the business logic of the diary.
//
// THE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, resolves weather, picks transaction scope
//	Repository (data layer)  → reads/writes SQLite
//
// The scheduler is a second caller of this layer: it only needs IngestWeather,
// so it depends on a one-method interface rather than on DiaryService.
//
// DEPENDENCIES:
// DiaryService takes a repository.Transactor and a WeatherFetcher (interfaces),
// NOT a *sqlite.DB or a *weather.Fetcher. Tests pass in-memory fakes for both
// (see diary_test.go); concurrency_test.go runs against a real SQLite file.
//
// TRANSACTIONS:
// Every store access runs inside Transactor.WithTx. Nothing is cached between
// calls. A weather fetch is never made while a write transaction is open: the
// provider can take as long as the HTTP client timeout, and SQLite writers only
// wait busy_timeout for each other.
//
// WEATHER RESOLUTION:
//
//	stored snapshot for the date → first one by insertion order
//	none stored                  → live current weather, stamped today, not stored
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sakif/weather-diary/internal/apperror"
	"github.com/sakif/weather-diary/internal/model"
	"github.com/sakif/weather-diary/internal/repository"
	"github.com/sakif/weather-diary/internal/weather"
)

// MaxTextLength is the longest diary text accepted, in characters (runes).
const MaxTextLength = 10000

// LatestDate is the last date a diary entry may be written for.
var LatestDate = model.NewDate(3050, time.January, 1)

// WeatherFetcher returns the provider's raw current-weather response.
type WeatherFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// DiaryService handles business logic for diary entries and weather snapshots.
type DiaryService struct {
	store   repository.Transactor
	fetcher WeatherFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a DiaryService.
type Option func(*DiaryService)

// WithClock replaces time.Now, which decides what "today" is for ingestion.
func WithClock(now func() time.Time) Option {
	return func(s *DiaryService) {
		s.now = now
	}
}

// NewDiaryService creates a new DiaryService.
func NewDiaryService(store repository.Transactor, fetcher WeatherFetcher, logger *slog.Logger, opts ...Option) *DiaryService {
	s := &DiaryService{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in the server's local time zone.
func (s *DiaryService) Today() model.Date {
	return model.DateOf(s.now())
}

// currentWeather runs one fetch+parse cycle and stamps the result with date.
func (s *DiaryService) currentWeather(ctx context.Context, date model.Date) (model.WeatherSnapshot, error) {
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return model.WeatherSnapshot{}, err
	}

	reading, err := weather.Parse(body)
	if err != nil {
		s.logger.Error("weather payload rejected", slog.String("error", err.Error()))
		return model.WeatherSnapshot{}, err
	}

	return reading.Snapshot(date), nil
}

// IngestWeather fetches the current weather and stores it as today's snapshot.
//
// The date is the service's own "today", not anything the provider reports.
// Snapshots are appended: running this twice on one day leaves two rows, and
// readers keep using the first. A failed fetch or parse stores nothing.
func (s *DiaryService) IngestWeather(ctx context.Context) (*model.WeatherSnapshot, error) {
	today := s.Today()

	snapshot, err := s.currentWeather(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("ingesting weather for %s: %w", today, err)
	}

	err = s.store.WithTx(ctx, repository.ReadWrite, func(tx repository.Store) error {
		return tx.SaveWeather(ctx, &snapshot)
	})
	if err != nil {
		s.logger.Error("failed to save weather snapshot",
			slog.String("date", today.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ingesting weather for %s: %w", today, err)
	}

	s.logger.Info("weather snapshot stored",
		slog.String("id", snapshot.ID),
		slog.String("date", today.String()),
		slog.String("condition", snapshot.Condition),
		slog.Float64("temperature", snapshot.Temperature),
	)
	return &snapshot, nil
}

// DateWeather returns the first stored snapshot for date. When none is stored
// it fetches the current weather instead and returns it without storing it:
// historical lookups are a paid provider feature, so today's weather stands in.
// The fallback snapshot is stamped with today's date, since that is the day it
// describes.
//
// The lookup runs in a read-only transaction; the fetch runs after it ends.
func (s *DiaryService) DateWeather(ctx context.Context, date model.Date) (model.WeatherSnapshot, error) {
	var stored []model.WeatherSnapshot
	err := s.store.WithTx(ctx, repository.ReadOnly, func(tx repository.Store) error {
		var err error
		stored, err = tx.FindWeatherByDate(ctx, date)
		return err
	})
	if err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("looking up weather for %s: %w", date, err)
	}
	if len(stored) > 0 {
		return stored[0], nil
	}

	s.logger.Info("no stored weather for date, using current weather", slog.String("date", date.String()))
	return s.currentWeather(ctx, s.Today())
}

func validateText(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("text must be at most %d characters", MaxTextLength))
	}
	return nil
}

func validateDate(date model.Date) error {
	if date.IsZero() {
		return apperror.ValidationFailed("date", "date is required")
	}
	if date.After(LatestDate.Time) {
		return apperror.ValidationFailed("date",
			fmt.Sprintf("date must not be after %s", LatestDate))
	}
	return nil
}

// CreateDiary writes a new entry for date with the weather resolved for it.
//
// Weather is resolved first, outside any write transaction. The insert then
// runs in a serializable transaction that looks up stored weather again: if a
// snapshot for the date was stored in the meantime, the entry references it
// instead of the live reading. Concurrent creates queue on the write lock for
// the insert only.
func (s *DiaryService) CreateDiary(ctx context.Context, date model.Date, text string) (*model.DiaryEntry, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if err := validateText(text); err != nil {
		return nil, err
	}

	s.logger.Debug("creating diary", slog.String("date", date.String()))

	resolved, err := s.DateWeather(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("creating diary: %w", err)
	}

	entry := &model.DiaryEntry{Date: date, Text: text}
	err = s.store.WithTx(ctx, repository.Serializable, func(tx repository.Store) error {
		entry.Weather = resolved
		if !resolved.Persisted() {
			stored, err := tx.FindWeatherByDate(ctx, date)
			if err != nil {
				return fmt.Errorf("looking up weather for %s: %w", date, err)
			}
			if len(stored) > 0 {
				entry.Weather = stored[0]
			}
		}
		return tx.SaveDiary(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("creating diary: %w", err)
	}

	s.logger.Info("diary created",
		slog.String("id", entry.ID),
		slog.String("date", date.String()),
		slog.Bool("stored_weather", entry.Weather.Persisted()),
	)
	return entry, nil
}

// ReadDiary returns every entry for date, oldest first.
func (s *DiaryService) ReadDiary(ctx context.Context, date model.Date) ([]model.DiaryEntry, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}

	var entries []model.DiaryEntry
	err := s.store.WithTx(ctx, repository.ReadOnly, func(tx repository.Store) error {
		var err error
		entries, err = tx.FindDiariesByDate(ctx, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading diary: %w", err)
	}
	return entries, nil
}

// ReadDiaries returns the entries from start to end inclusive. A reversed range
// is not rejected; it matches nothing.
func (s *DiaryService) ReadDiaries(ctx context.Context, start, end model.Date) ([]model.DiaryEntry, error) {
	var entries []model.DiaryEntry
	err := s.store.WithTx(ctx, repository.ReadOnly, func(tx repository.Store) error {
		var err error
		entries, err = tx.FindDiariesBetween(ctx, start, end)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading diaries: %w", err)
	}
	return entries, nil
}

// UpdateDiary replaces the text of the first entry for date.
// Returns apperror.ErrNotFound if the date has no entries.
func (s *DiaryService) UpdateDiary(ctx context.Context, date model.Date, text string) (*model.DiaryEntry, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	var entry *model.DiaryEntry
	err := s.store.WithTx(ctx, repository.ReadWrite, func(tx repository.Store) error {
		var err error
		entry, err = tx.GetFirstDiaryByDate(ctx, date)
		if err != nil {
			return err
		}
		entry.Text = text
		return tx.SaveDiary(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("updating diary: %w", err)
	}

	s.logger.Info("diary updated",
		slog.String("id", entry.ID),
		slog.String("date", date.String()),
	)
	return entry, nil
}

// DeleteDiary removes every entry for date and reports how many were removed.
func (s *DiaryService) DeleteDiary(ctx context.Context, date model.Date) (int64, error) {
	var n int64
	err := s.store.WithTx(ctx, repository.ReadWrite, func(tx repository.Store) error {
		var err error
		n, err = tx.DeleteDiariesByDate(ctx, date)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting diary: %w", err)
	}

	s.logger.Info("diaries deleted",
		slog.String("date", date.String()),
		slog.Int64("count", n),
	)
	return n, nil
}
