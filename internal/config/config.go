// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/weather-diary/internal/scheduler"
	"github.com/sakif/weather-diary/internal/weather"
)

// Config holds every setting the server and the ingest command need.
type Config struct {
	Port   int
	DBPath string

	OpenWeatherAPIKey  string
	WeatherCity        string
	WeatherBaseURL     string
	WeatherHTTPTimeout time.Duration

	// IngestCron is the cron expression for the daily weather job,
	// evaluated in the server's local time zone.
	IngestCron string

	LogLevel slog.Level
}

// Load reads a .env file when present, then the environment, with defaults.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		DBPath:            getenvDefault("DB_PATH", "data/diary.db"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherCity:       getenvDefault("WEATHER_CITY", weather.DefaultCity),
		WeatherBaseURL:    getenvDefault("WEATHER_BASE_URL", weather.DefaultBaseURL),
		IngestCron:        getenvDefault("INGEST_CRON", scheduler.DefaultCron),
	}

	port, err := strconv.Atoi(getenvDefault("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	timeout, err := time.ParseDuration(getenvDefault("WEATHER_HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_HTTP_TIMEOUT: %w", err)
	}
	cfg.WeatherHTTPTimeout = timeout

	level, err := parseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
