package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/weather-diary/internal/config"
	"github.com/sakif/weather-diary/internal/model"
)

const providerPayload = `{"weather":[{"main":"Snow","icon":"13d"}],"main":{"temp":271.4}}`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, providerPayload)
	}))
	t.Cleanup(provider.Close)

	cfg := &config.Config{
		Port:               0,
		DBPath:             ":memory:",
		OpenWeatherAPIKey:  "test-key",
		WeatherCity:        "seoul",
		WeatherBaseURL:     provider.URL,
		WeatherHTTPTimeout: 2 * time.Second,
		IngestCron:         "0 1 * * *",
	}

	srv, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestDiaryLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()

	send := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = bytes.NewBufferString(body)
		}
		req := httptest.NewRequest(method, target, reader)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := send(http.MethodPost, "/api/diaries", `{"date":"2024-01-15","text":"first snow"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created model.DiaryEntry
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Snow", created.Weather.Condition)
	assert.Equal(t, "13d", created.Weather.Icon)
	assert.Equal(t, 271.4, created.Weather.Temperature)

	rr = send(http.MethodPut, "/api/diaries/2024-01-15", `{"text":"first snow, deep"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = send(http.MethodGet, "/api/diaries?start=2024-01-01&end=2024-01-31", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []model.DiaryEntry
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "first snow, deep", listed[0].Text)
	assert.Equal(t, created.ID, listed[0].ID)

	rr = send(http.MethodDelete, "/api/diaries/2024-01-15", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = send(http.MethodGet, "/api/diaries?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = send(http.MethodPut, "/api/diaries/2024-01-15", `{"text":"gone"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWeatherWithoutStoredSnapshotFetchesLive(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/weather/2024-01-15", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var snap model.WeatherSnapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, "Snow", snap.Condition)
	assert.Empty(t, snap.ID, "live snapshot is not stored")
}
