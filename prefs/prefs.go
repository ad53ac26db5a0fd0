// Package prefs persists user preferences for the translation pipeline in
// SQLite. The one preference that matters operationally is the enabled
// toggle: it survives restarts, and a Watcher lets a running pipeline pick
// up external changes to it.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema for the preferences table. Call Init once on the shared DB.
const schema = `
CREATE TABLE IF NOT EXISTS gloss_prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const keyEnabled = "enabled"

// Init creates the preferences table.
func Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Store reads and writes preferences. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialised database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the raw value for key, or "" when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM gloss_prefs WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return v, nil
}

// Set upserts key to value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gloss_prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

// Enabled returns the persisted pipeline toggle. Unset means disabled.
func (s *Store) Enabled(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, keyEnabled)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetEnabled persists the pipeline toggle.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	return s.Set(ctx, keyEnabled, v)
}
