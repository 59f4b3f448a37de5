// Package journal records one row per engine Execute call in SQLite.
//
// The journal is observability, not state: the engine's caching behavior
// never reads it, and a missing or broken journal degrades to unrecorded
// runs. It implements engine.Recorder.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/casket/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is a SQLite-backed execution journal.
// Uses WAL mode for concurrent read access during writes.
type Store struct {
	db *sql.DB
}

var _ engine.Recorder = (*Store)(nil)

// Open creates or opens the journal database at path.
// Applies required pragmas and the schema automatically; idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent engine executions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one run row. Duplicate IDs are silently ignored so a
// retried record never fails the caller.
func (s *Store) Record(ctx context.Context, run engine.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, fingerprint, outcome, error, started_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Kind,
		run.Fingerprint,
		string(run.Outcome),
		run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first. kind filters when
// non-empty; limit <= 0 means no limit.
func (s *Store) Runs(ctx context.Context, kind string, limit int) ([]engine.Run, error) {
	query := `
		SELECT id, kind, fingerprint, outcome, error, started_at, duration_us
		FROM runs
	`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []engine.Run
	for rows.Next() {
		var (
			run        engine.Run
			outcome    string
			startedAt  string
			durationUS int64
		)
		if err := rows.Scan(&run.ID, &run.Kind, &run.Fingerprint, &outcome, &run.Error, &startedAt, &durationUS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Outcome = engine.Outcome(outcome)
		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", startedAt, err)
		}
		run.StartedAt = ts
		run.Duration = time.Duration(durationUS) * time.Microsecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
