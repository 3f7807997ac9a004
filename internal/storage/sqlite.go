package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

var _ domain.CompletionStore = (*SQLiteStore)(nil)

// SQLiteStore keeps completion records in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenSQLite opens (or creates) the database at path and its schema.
func OpenSQLite(ctx context.Context, path string, log *logger.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS completions (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL,
		completed_at    INTEGER NOT NULL,
		exercise_id     TEXT NOT NULL,
		step            INTEGER NOT NULL,
		actual_ms       INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating completions table: %w", err)
	}

	log.Debug("sqlite store opened at %s", path)
	return &SQLiteStore{db: db, log: log}, nil
}

// SaveCompletions inserts the records in one transaction.
func (s *SQLiteStore) SaveCompletions(ctx context.Context, records []domain.CompletionRecord) error {
	if len(records) == 0 {
		return nil
	}
	prepared := prepare(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO completions (id, session_id, completed_at, exercise_id, step, actual_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range prepared {
		if _, err := stmt.ExecContext(ctx, r.ID, r.SessionID, r.Date.UnixMilli(), r.ExerciseID, r.Step, r.ActualDuration.Milliseconds()); err != nil {
			return fmt.Errorf("inserting completion %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("sqlite: saved %d completion records", len(prepared))
	return nil
}

// ListCompletions returns the newest records first. limit <= 0 returns all.
func (s *SQLiteStore) ListCompletions(ctx context.Context, limit int) ([]domain.CompletionRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, completed_at, exercise_id, step, actual_ms
		 FROM completions
		 ORDER BY completed_at DESC, step ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying completions: %w", err)
	}
	defer rows.Close()

	var out []domain.CompletionRecord
	for rows.Next() {
		var (
			r        domain.CompletionRecord
			atMillis int64
			actualMs int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &atMillis, &r.ExerciseID, &r.Step, &actualMs); err != nil {
			return nil, fmt.Errorf("scanning completion: %w", err)
		}
		r.Date = time.UnixMilli(atMillis).UTC()
		r.ActualDuration = time.Duration(actualMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
