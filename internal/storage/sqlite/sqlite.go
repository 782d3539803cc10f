// Package sqlite implements the storage interface on a local SQLite file.
//
// The database is a cache, not a source of truth: it is rebuilt from the
// JSONL line logs whenever the two disagree, so the schema carries no
// migration history beyond CREATE IF NOT EXISTS.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomworks/loom/internal/storage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if needed) the cache database at path. ":memory:"
// opens a private in-memory database, used by tests.
func New(ctx context.Context, path string) (*Store, error) {
	connStr := "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared&_busy_timeout=5000&_foreign_keys=on"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// A single writer avoids lock contention; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// SetConfig upserts a config key.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	err := retryWrite(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO config (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("setting config %s: %w", key, err)
	}
	return nil
}

// GetConfig reads a config key; a missing key is an empty value.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading config %s: %w", key, err)
	}
	return value, nil
}
