package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/weather-diary/internal/apperror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingTransport fails every round trip and counts the attempts.
type failingTransport struct {
	calls atomic.Int32
}

func (ft *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	ft.calls.Add(1)
	return nil, errors.New("dial tcp: lookup api.openweathermap.org: no such host")
}

func TestFetch_SendsCityAndKey(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, samplePayload)
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL, City: "busan", APIKey: "secret"}, srv.Client(), testLogger())

	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, samplePayload, body)
	assert.Equal(t, []string{"busan"}, gotQuery["q"])
	assert.Equal(t, []string{"secret"}, gotQuery["appid"])
}

func TestFetch_JoinsLinesWithoutNewlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{\"main\":{\"temp\":280.5},\n\"weather\":[{\"main\":\"Clouds\",\r\n\"icon\":\"04d\"}]}\n")
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL, APIKey: "k"}, srv.Client(), testLogger())

	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, samplePayload, body)
}

func TestFetch_ReturnsErrorBody(t *testing.T) {
	const errBody = `{"cod":401,"message":"Invalid API key."}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, errBody)
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL, APIKey: "bad"}, srv.Client(), testLogger())

	body, err := f.Fetch(context.Background())
	require.NoError(t, err, "an HTTP error status is not a transport failure")
	assert.Equal(t, errBody, body)

	_, err = Parse(body)
	assert.ErrorIs(t, err, apperror.ErrBadPayload)
}

func TestFetch_TransportFailure(t *testing.T) {
	ft := &failingTransport{}
	f := NewFetcher(Config{APIKey: "k"}, &http.Client{Transport: ft}, testLogger())

	body, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Empty(t, body)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Contains(t, err.Error(), FailedResponse)
	assert.EqualValues(t, 1, ft.calls.Load(), "no retries")
}

func TestFetch_MissingAPIKey(t *testing.T) {
	ft := &failingTransport{}
	f := NewFetcher(Config{}, &http.Client{Transport: ft}, testLogger())

	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Zero(t, ft.calls.Load(), "no request without a key")
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ft := &failingTransport{}
	f := NewFetcher(Config{APIKey: "k"}, &http.Client{Transport: ft}, testLogger())

	for i := 0; i < 10; i++ {
		_, err := f.Fetch(context.Background())
		assert.ErrorIs(t, err, apperror.ErrUpstream)
	}

	// The fifth consecutive failure opens the breaker; later calls never dial.
	assert.EqualValues(t, breakerTripAfter, ft.calls.Load())
}

func TestFetch_CallerCancellationDoesNotOpenBreaker(t *testing.T) {
	ft := &failingTransport{}
	f := NewFetcher(Config{APIKey: "k"}, &http.Client{Transport: ft}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 2*breakerTripAfter; i++ {
		_, err := f.Fetch(ctx)
		assert.ErrorIs(t, err, apperror.ErrUpstream)
	}
	assert.Equal(t, gobreaker.StateClosed, f.breaker.State())

	// A live caller still reaches the provider.
	callsBefore := ft.calls.Load()
	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, callsBefore+1, ft.calls.Load())
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, samplePayload)
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL, APIKey: "k"}, srv.Client(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURL_Defaults(t *testing.T) {
	f := NewFetcher(Config{APIKey: "abc"}, nil, testLogger())
	assert.Equal(t, DefaultBaseURL+"?appid=abc&q=seoul", f.URL())
}
