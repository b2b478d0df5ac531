// Package storage handles persistence: the SQLite generation-call log and
// the sinks that archive journal exports.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	// In Go, importing a package for its side effects (init function) is done
	// with a blank identifier. This registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"
)

// schema is applied on every start; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS generation_calls (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id    TEXT NOT NULL,
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    strategy      TEXT NOT NULL DEFAULT '',
    success       BOOLEAN NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_generation_calls_provider ON generation_calls(provider);
-- request_id comes from X-Request-ID, which clients may repeat on retry.
DROP INDEX IF EXISTS idx_generation_calls_request;
CREATE INDEX IF NOT EXISTS idx_generation_calls_request_id ON generation_calls(request_id);
`

// NewDatabase opens the SQLite database at dbPath and applies the schema.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL lets reads proceed during a write; busy_timeout waits out lock
	// contention for up to 5s instead of failing.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
