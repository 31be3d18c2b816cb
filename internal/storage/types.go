package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite" / "sqlite3": SQLite database file at Path
//   - "" / "none": storage disabled, Open returns a nil Store
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// LiveRecord is one observed not-live to live transition.
type LiveRecord struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Plugin   string    `json:"plugin"`
	Streamer string    `json:"streamer"`
	URL      string    `json:"url"`
}
