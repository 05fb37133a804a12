// Package model defines the data structures used throughout the application.
package model

import "time"

// WeatherSnapshot is one recorded weather reading for a calendar date.
//
// Several snapshots may exist for the same date (the daily job appends). The
// one used for a date is always the first by insertion order.
//
// A snapshot with an empty ID was built in memory from a live fetch and never
// stored.
type WeatherSnapshot struct {
	ID          string    `json:"id,omitempty"`
	Date        Date      `json:"date"`
	Condition   string    `json:"condition"`   // e.g. "Clouds"
	Icon        string    `json:"icon"`        // provider icon code, e.g. "04d"
	Temperature float64   `json:"temperature"` // Kelvin
	CreatedAt   time.Time `json:"createdAt"`
}

// Persisted reports whether the snapshot came from the weather store.
func (w WeatherSnapshot) Persisted() bool {
	return w.ID != ""
}
