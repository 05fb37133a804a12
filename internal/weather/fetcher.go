// Package weather talks to the OpenWeatherMap current-weather endpoint and
// extracts the few fields a diary entry keeps.
package weather

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sakif/weather-diary/internal/apperror"
)

// FailedResponse is the message carried by every transport-level fetch error.
const FailedResponse = "failed to get response"

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultCity    = "seoul"

	// maxLineBytes bounds a single line of the response body.
	maxLineBytes = 1 << 20

	// breakerTripAfter consecutive transport failures open the breaker.
	breakerTripAfter = 5
	breakerOpenFor   = time.Minute
)

// errCallerGone marks a fetch abandoned because the caller's context ended.
// The breaker does not count it against the provider.
var errCallerGone = errors.New("caller cancelled weather fetch")

// Config holds the endpoint settings for a Fetcher.
type Config struct {
	BaseURL string
	City    string
	APIKey  string
}

// Fetcher issues one GET per call for the configured city. It never retries.
//
// Calls pass through a circuit breaker: after five consecutive transport
// failures it stops dialing the provider for a minute and fails immediately.
// A fetch cut short by the caller's own context is not a provider failure.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. Empty BaseURL and City fall back to the defaults.
func NewFetcher(cfg Config, client *http.Client, logger *slog.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.City == "" {
		cfg.City = DefaultCity
	}
	if client == nil {
		client = http.DefaultClient
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweathermap",
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("weather circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Fetcher{
		client:  client,
		cfg:     cfg,
		breaker: cb,
		logger:  logger,
	}
}

// URL returns the request URL for the configured city and key.
func (f *Fetcher) URL() string {
	values := url.Values{}
	values.Set("q", f.cfg.City)
	values.Set("appid", f.cfg.APIKey)
	return f.cfg.BaseURL + "?" + values.Encode()
}

// Fetch returns the provider's response body as text.
//
// The body is returned for every HTTP status, error statuses included; a
// non-2xx body is not weather data and is rejected later by Parse. Only
// transport failures (DNS, connect, read) produce an error here, and that
// error always matches apperror.ErrUpstream.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	if f.cfg.APIKey == "" {
		return "", apperror.Upstream("weather api key is not configured", nil)
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		body, err := f.get(ctx)
		if err != nil && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return body, err
	})
	if err != nil {
		f.logger.Error("weather fetch failed",
			slog.String("city", f.cfg.City),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream(FailedResponse, err)
	}

	body, ok := result.(string)
	if !ok {
		return "", apperror.Upstream(FailedResponse, fmt.Errorf("unexpected result type %T from circuit breaker", result))
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("weather provider returned error status",
			slog.String("city", f.cfg.City),
			slog.Int("status", resp.StatusCode),
		)
	}

	body, err := readLines(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// readLines concatenates every line of r without the line terminators.
func readLines(r io.Reader) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
