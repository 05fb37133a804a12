package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/weather-diary/internal/model"
)

type countingIngester struct {
	calls atomic.Int32
	err   error
}

func (c *countingIngester) IngestWeather(ctx context.Context) (*model.WeatherSnapshot, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("ingestion must run with a deadline")
	}
	if c.err != nil {
		return nil, c.err
	}
	return &model.WeatherSnapshot{ID: "w-1", Date: model.DateOf(time.Now())}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStart_SchedulesDailyAtOneAM(t *testing.T) {
	ing := &countingIngester{}
	s := New("", time.UTC, ing, testLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	next := s.NextRun().UTC()
	assert.Equal(t, 1, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()), "next run must be in the future")
	assert.True(t, next.Sub(time.Now()) <= 24*time.Hour, "job fires at least daily")
	assert.Zero(t, ing.calls.Load(), "nothing runs on start")
}

func TestStart_InvalidCron(t *testing.T) {
	s := New("not a cron", time.UTC, &countingIngester{}, testLogger())

	assert.Error(t, s.Start())
}

func TestNextRun_BeforeStart(t *testing.T) {
	s := New(DefaultCron, nil, &countingIngester{}, testLogger())

	assert.True(t, s.NextRun().IsZero())
}

func TestRun_CallsIngesterWithDeadline(t *testing.T) {
	ing := &countingIngester{}
	s := New(DefaultCron, time.UTC, ing, testLogger())

	s.run()

	assert.EqualValues(t, 1, ing.calls.Load())
}

func TestRun_FailureDoesNotPanic(t *testing.T) {
	ing := &countingIngester{err: errors.New("failed to get response")}
	s := New(DefaultCron, time.UTC, ing, testLogger())

	assert.NotPanics(t, s.run)
	assert.EqualValues(t, 1, ing.calls.Load())
}
