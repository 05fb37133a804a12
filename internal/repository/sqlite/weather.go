package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/weather-diary/internal/model"
)

// SaveWeather appends a snapshot. It never replaces an existing row, so running
// the daily job twice leaves two rows for the date.
func (db *DB) SaveWeather(ctx context.Context, snapshot *model.WeatherSnapshot) error {
	snapshot.ID = xid.New().String()
	snapshot.CreatedAt = time.Now()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO weather_snapshots (id, date, weather_main, weather_icon, temperature, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.Date,
		snapshot.Condition,
		snapshot.Icon,
		snapshot.Temperature,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving weather for %s: %w", snapshot.Date, err)
	}

	return nil
}

// FindWeatherByDate returns the snapshots for date in insertion order.
func (db *DB) FindWeatherByDate(ctx context.Context, date model.Date) ([]model.WeatherSnapshot, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id, date, weather_main, weather_icon, temperature, created_at
		 FROM weather_snapshots
		 WHERE date = ?
		 ORDER BY rowid`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding weather for %s: %w", date, err)
	}
	defer rows.Close()

	snapshots := []model.WeatherSnapshot{}
	for rows.Next() {
		var w model.WeatherSnapshot
		if err := rows.Scan(&w.ID, &w.Date, &w.Condition, &w.Icon, &w.Temperature, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning weather row: %w", err)
		}
		snapshots = append(snapshots, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating weather rows: %w", err)
	}

	return snapshots, nil
}
