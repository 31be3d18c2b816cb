// Package storage persists live events and notifier dedup state.
//
// The only backend is SQLite (modernc.org/sqlite, no cgo). Opening is
// idempotent: the parent directory, the database file and its tables are
// created when missing and reused otherwise.
package storage
