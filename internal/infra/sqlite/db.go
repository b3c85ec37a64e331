// Package sqlite is the embedded single-node attempt store, backed by the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // driver: sqlite
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Open opens the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	switch {
	case path == "" || path == MemoryDSN:
		dsn = MemoryDSN
	case !strings.HasPrefix(path, "file:"):
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == MemoryDSN {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_attempt_questions (
  attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  question_id TEXT NOT NULL,
  qtype TEXT NOT NULL,
  PRIMARY KEY (attempt_id, position),
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempt_answers (
  attempt_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  qtype TEXT NOT NULL,
  likert_value INTEGER CHECK (likert_value BETWEEN 0 AND 4),
  option_id TEXT,
  ranking TEXT,
  answered_at INTEGER NOT NULL,
  PRIMARY KEY (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempt_option_orders (
  attempt_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  option_ids TEXT NOT NULL,
  option_count INTEGER NOT NULL,
  PRIMARY KEY (attempt_id, question_id)
);
`
