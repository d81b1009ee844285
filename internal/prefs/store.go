// Package prefs provides a SQLite-backed key-value preference store. It
// holds small serialized records, such as the storybook index, under
// well-known keys.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// Static errors.
var (
	ErrPathEmpty = errors.New("storage path cannot be empty")
	ErrKeyEmpty  = errors.New("key cannot be empty")
)

// Store persists preference entries in a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the preference store at path, creating the database and schema
// if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrPathEmpty
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	sqlDB, openErr := sql.Open("sqlite", dsn)
	if openErr != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", openErr)
	}

	pingErr := sqlDB.Ping()
	if pingErr != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("failed to ping preference store: %w", pingErr)
	}

	_, schemaErr := sqlDB.Exec(schema)
	if schemaErr != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("failed to apply preference schema: %w", schemaErr)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}

	closeErr := s.sqlDB.Close()
	if closeErr != nil {
		return fmt.Errorf("failed to close preference store: %w", closeErr)
	}

	return nil
}

// Put stores value under key, replacing any existing entry.
func (s *Store) Put(key string, value []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}

	_, execErr := s.sqlDB.Exec(
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if execErr != nil {
		return fmt.Errorf("failed to store preference '%s': %w", key, execErr)
	}

	return nil
}

// Get retrieves the value stored under key. A missing key is reported via
// the boolean, not as an error.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrKeyEmpty
	}

	var value []byte

	scanErr := s.sqlDB.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to load preference '%s': %w", key, scanErr)
	}

	return value, true, nil
}
