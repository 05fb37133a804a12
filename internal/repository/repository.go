// Package repository defines the storage contracts the service layer depends on.
package repository

import (
	"context"
	"database/sql"

	"github.com/sakif/weather-diary/internal/model"
)

// WeatherRepository stores daily weather snapshots. It is append-only.
type WeatherRepository interface {
	SaveWeather(ctx context.Context, snapshot *model.WeatherSnapshot) error
	// FindWeatherByDate returns every snapshot for date, oldest first.
	FindWeatherByDate(ctx context.Context, date model.Date) ([]model.WeatherSnapshot, error)
}

// DiaryRepository stores diary entries.
type DiaryRepository interface {
	// SaveDiary inserts entries without an ID and updates the text of those with one.
	SaveDiary(ctx context.Context, entry *model.DiaryEntry) error
	FindDiariesByDate(ctx context.Context, date model.Date) ([]model.DiaryEntry, error)
	// FindDiariesBetween is inclusive on both ends. start after end yields no rows.
	FindDiariesBetween(ctx context.Context, start, end model.Date) ([]model.DiaryEntry, error)
	// GetFirstDiaryByDate returns apperror.ErrNotFound when the date has no entries.
	GetFirstDiaryByDate(ctx context.Context, date model.Date) (*model.DiaryEntry, error)
	DeleteDiariesByDate(ctx context.Context, date model.Date) (int64, error)
}

// Store is everything available inside one transaction.
type Store interface {
	WeatherRepository
	DiaryRepository
}

// TxOptions selects the transaction mode for Transactor.WithTx.
type TxOptions struct {
	ReadOnly  bool
	Isolation sql.IsolationLevel
}

var (
	ReadOnly     = TxOptions{ReadOnly: true}
	ReadWrite    = TxOptions{}
	Serializable = TxOptions{Isolation: sql.LevelSerializable}
)

// Transactor runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type Transactor interface {
	WithTx(ctx context.Context, opts TxOptions, fn func(Store) error) error
}
