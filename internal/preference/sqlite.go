// Package preference persists per-session UI preferences.
package preference

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Zachkp/portfolio/internal/apperr"
)

// Store reads and writes preferences keyed by browser session.
type Store interface {
	Get(sessionID, key string) (string, error)
	Set(sessionID, key, value string) error
	// Forget deletes every preference of sessionID and reports how many
	// were removed.
	Forget(sessionID string) (int64, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (session_id, key)
)`

// SQLite stores preferences in a single SQLite table.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the preference database at path.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the stored value or apperr.ErrNotFound.
func (s *SQLite) Get(sessionID, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM preferences WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading preference %s: %w", key, err)
	}
	return value, nil
}

// Set stores value, replacing any previous one.
func (s *SQLite) Set(sessionID, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sessionID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

// Forget removes every preference of a session.
func (s *SQLite) Forget(sessionID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM preferences WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting preferences: %w", err)
	}
	return result.RowsAffected()
}
