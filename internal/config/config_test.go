package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DB_PATH", "OPENWEATHER_API_KEY", "WEATHER_CITY", "WEATHER_BASE_URL",
	"WEATHER_HTTP_TIMEOUT", "INGEST_CRON", "LOG_LEVEL",
}

// clearEnv blanks every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/diary.db", cfg.DBPath)
	assert.Equal(t, "seoul", cfg.WeatherCity)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather", cfg.WeatherBaseURL)
	assert.Equal(t, 10*time.Second, cfg.WeatherHTTPTimeout)
	assert.Equal(t, "0 1 * * *", cfg.IngestCron)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.OpenWeatherAPIKey)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("OPENWEATHER_API_KEY", "abc123")
	t.Setenv("WEATHER_CITY", "busan")
	t.Setenv("WEATHER_HTTP_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "abc123", cfg.OpenWeatherAPIKey)
	assert.Equal(t, "busan", cfg.WeatherCity)
	assert.Equal(t, 3*time.Second, cfg.WeatherHTTPTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range configKeys {
		os.Unsetenv(k) // godotenv never overrides variables that are set, even to ""
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENWEATHER_API_KEY=from-file\nINGEST_CRON=30 2 * * *\n"), 0o600))

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.OpenWeatherAPIKey)
	assert.Equal(t, "30 2 * * *", cfg.IngestCron)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"PORT", "70000"},
		{"WEATHER_HTTP_TIMEOUT", "soon"},
		{"LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
