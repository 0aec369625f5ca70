package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLite is the fallback identity store, a single kv table with epoch-milli
// expiries.
type SQLite struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLite opens (and if needed initializes) the kv database at path.
func NewSQLite(path string, clk clock.Clock) (*SQLite, error) {
	if clk == nil {
		clk = clock.New()
	}

	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open kv database: %w", err)
	}
	if err := createKVTable(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, clock: clk}, nil
}

func createKVTable(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS kv(
	  key        TEXT PRIMARY KEY,
	  value      TEXT    NOT NULL,
	  expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Get returns the live value for key, deleting it if it has expired.
func (s *SQLite) Get(key string) (string, bool) {
	var value string
	var expiresAt int64
	err := s.db.QueryRow(`SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		return "", false
	}
	if expiresAt <= s.clock.Now().UnixMilli() {
		_, _ = s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
		return "", false
	}
	return value, true
}

// Set upserts key.
func (s *SQLite) Set(key, value string, expiresAt time.Time) error {
	_, err := s.db.Exec(`
	INSERT INTO kv(key, value, expires_at) VALUES(?,?,?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
