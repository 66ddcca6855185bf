package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Option keys.
const (
	// OptionBasePath holds the absolute root that tracked paths are relative to.
	OptionBasePath = "basepath"
)

// GetOption returns the value stored under key, or ErrNotFound.
func (s *Store) GetOption(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM options WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("option %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading option %s: %w", key, err)
	}
	return value, nil
}

// SetOption stores value under key, replacing any previous value.
func (s *Store) SetOption(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO options (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("writing option %s: %w", key, err)
	}
	return nil
}
