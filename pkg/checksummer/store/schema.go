package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrations are applied in order starting from version 0.
// Existing entries must never change; append new ones.
var migrations = []func(context.Context, *sql.Tx) error{
	migrateV0,
}

// migrateV0 creates the files and options tables.
// found: NULL unknown, 1 present, 0 missing.
// verified: NULL unknown, 1 matches, 0 mismatches.
func migrateV0(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            path TEXT NOT NULL UNIQUE,
            checksum TEXT,
            size INTEGER,
            mtime INTEGER,
            found INTEGER,
            verified INTEGER
        );`,
		`CREATE INDEX IF NOT EXISTS idx_files_checksum ON files(checksum);`,
		`CREATE INDEX IF NOT EXISTS idx_files_found ON files(found);`,
		`CREATE TABLE IF NOT EXISTS options (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates the schema if absent and applies pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for v := current + 1; v < len(migrations); v++ {
		if err := s.runMigration(ctx, v); err != nil {
			return fmt.Errorf("run migration %d: %w", v, err)
		}
		s.logger.Debug("migration applied", "version", v)
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or -1 for a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

func (s *Store) runMigration(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := migrations[version](ctx, tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
