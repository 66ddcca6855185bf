// Package store persists the file inventory in a SQLite database.
//
// The database holds two tables: files, one row per tracked path, and
// options, a small key/value table for settings such as the tracked root.
// Schema creation is idempotent and versioned, so opening an existing
// inventory is always safe.
//
// The Store keeps a single connection open. Bulk writers use a Batch, which
// commits every N writes; reads issued while a Batch holds an open
// transaction wait for that connection, so callers flush the batch before
// reading the next page of records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // sqlite driver for database/sql

	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
)

// ErrNotFound is returned when a requested option or record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultBatchSize is the number of writes committed per transaction during
// bulk phases.
const DefaultBatchSize = 5000

// Store wraps the inventory database.
type Store struct {
	db     *sql.DB
	path   string
	logger *logging.Logger
}

// Open opens or creates the inventory database at path, applies pragmas and
// brings the schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", abs)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", p, err)
		}
	}

	s := New(db)
	s.path = abs
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Debug("store opened", "path", abs)
	return s, nil
}

// New wraps an already opened database. The schema is not touched; call
// Migrate to create it.
func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: logging.Get("store"),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the absolute database path, or "" for a Store built with New.
func (s *Store) Path() string {
	return s.path
}

// SidecarPaths returns the database file and the journal files SQLite keeps
// next to it.
func (s *Store) SidecarPaths() []string {
	if s.path == "" {
		return nil
	}
	return []string{s.path, s.path + "-wal", s.path + "-shm", s.path + "-journal"}
}

// nullable converts an empty string to SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// noLimit maps a non-positive limit to SQLite's "no limit".
func noLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
