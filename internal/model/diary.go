package model

import "time"

// DiaryEntry is one user-written entry for a calendar date.
//
// Weather is a copy of the snapshot resolved when the entry was created. It is
// not re-read afterwards, so later ingestion runs never change an entry's
// weather.
type DiaryEntry struct {
	ID        string          `json:"id"`
	Date      Date            `json:"date"`
	Text      string          `json:"text"`
	Weather   WeatherSnapshot `json:"weather"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
