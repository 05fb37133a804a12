package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/weather-diary/internal/apperror"
	"github.com/sakif/weather-diary/internal/model"
)

const diaryColumns = `id, date, text, weather_id, weather_date, weather_main, weather_icon,
	temperature, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiary(row rowScanner) (model.DiaryEntry, error) {
	var e model.DiaryEntry
	err := row.Scan(
		&e.ID,
		&e.Date,
		&e.Text,
		&e.Weather.ID,
		&e.Weather.Date,
		&e.Weather.Condition,
		&e.Weather.Icon,
		&e.Weather.Temperature,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

// SaveDiary inserts a new entry (empty ID) or updates the text of an existing one.
// Only the text is mutable; the weather copy is fixed at creation.
func (db *DB) SaveDiary(ctx context.Context, entry *model.DiaryEntry) error {
	if entry.ID == "" {
		return db.insertDiary(ctx, entry)
	}
	return db.updateDiary(ctx, entry)
}

func (db *DB) insertDiary(ctx context.Context, entry *model.DiaryEntry) error {
	entry.ID = xid.New().String()
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO diaries (`+diaryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Date,
		entry.Text,
		entry.Weather.ID,
		entry.Weather.Date,
		entry.Weather.Condition,
		entry.Weather.Icon,
		entry.Weather.Temperature,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating diary for %s: %w", entry.Date, err)
	}

	return nil
}

func (db *DB) updateDiary(ctx context.Context, entry *model.DiaryEntry) error {
	entry.UpdatedAt = time.Now()

	result, err := db.q.ExecContext(ctx,
		`UPDATE diaries SET text = ?, updated_at = ? WHERE id = ?`,
		entry.Text,
		entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating diary %s: %w", entry.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("diary", "id "+entry.ID)
	}

	return nil
}

// FindDiariesByDate returns every entry for date in insertion order.
func (db *DB) FindDiariesByDate(ctx context.Context, date model.Date) ([]model.DiaryEntry, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT `+diaryColumns+`
		 FROM diaries
		 WHERE date = ?
		 ORDER BY rowid`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding diaries for %s: %w", date, err)
	}
	return collectDiaries(rows)
}

// FindDiariesBetween returns entries with start <= date <= end, ordered by date
// and then insertion. A reversed range simply matches nothing.
func (db *DB) FindDiariesBetween(ctx context.Context, start, end model.Date) ([]model.DiaryEntry, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT `+diaryColumns+`
		 FROM diaries
		 WHERE date BETWEEN ? AND ?
		 ORDER BY date, rowid`,
		start,
		end,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding diaries between %s and %s: %w", start, end, err)
	}
	return collectDiaries(rows)
}

func collectDiaries(rows *sql.Rows) ([]model.DiaryEntry, error) {
	defer rows.Close()

	entries := []model.DiaryEntry{}
	for rows.Next() {
		e, err := scanDiary(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning diary row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating diaries: %w", err)
	}

	return entries, nil
}

// GetFirstDiaryByDate returns the oldest entry for date.
func (db *DB) GetFirstDiaryByDate(ctx context.Context, date model.Date) (*model.DiaryEntry, error) {
	row := db.q.QueryRowContext(ctx,
		`SELECT `+diaryColumns+`
		 FROM diaries
		 WHERE date = ?
		 ORDER BY rowid
		 LIMIT 1`,
		date,
	)

	e, err := scanDiary(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("diary", date.String())
		}
		return nil, fmt.Errorf("sqlite: getting first diary for %s: %w", date, err)
	}

	return &e, nil
}

// DeleteDiariesByDate removes every entry for date and reports how many went.
// Deleting from an empty date is not an error.
func (db *DB) DeleteDiariesByDate(ctx context.Context, date model.Date) (int64, error) {
	result, err := db.q.ExecContext(ctx, `DELETE FROM diaries WHERE date = ?`, date)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting diaries for %s: %w", date, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
