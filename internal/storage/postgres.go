package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

var _ domain.CompletionStore = (*PostgresStore)(nil)

// PostgresStore keeps completion records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// OpenPostgres connects, pings and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, log *logger.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS completions (
		id           UUID PRIMARY KEY,
		session_id   TEXT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		exercise_id  TEXT NOT NULL,
		step         INTEGER NOT NULL,
		actual_ms    BIGINT NOT NULL
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating completions table: %w", err)
	}
	log.Debug("postgres store connected")
	return &PostgresStore{pool: pool, log: log}, nil
}

// SaveCompletions batch-inserts the records.
func (s *PostgresStore) SaveCompletions(ctx context.Context, records []domain.CompletionRecord) error {
	if len(records) == 0 {
		return nil
	}
	prepared := prepare(records)

	const cols = 6
	query := `INSERT INTO completions (id, session_id, completed_at, exercise_id, step, actual_ms) VALUES `
	args := make([]any, 0, len(prepared)*cols)
	values := make([]string, 0, len(prepared))
	for i, r := range prepared {
		base := i * cols
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, r.ID, r.SessionID, r.Date, r.ExerciseID, r.Step, r.ActualDuration.Milliseconds())
	}
	query += strings.Join(values, ",") + " ON CONFLICT (id) DO NOTHING"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting completions: %w", err)
	}
	s.log.Debug("postgres: saved %d completion records", tag.RowsAffected())
	return nil
}

// ListCompletions returns the newest records first. limit <= 0 returns all.
func (s *PostgresStore) ListCompletions(ctx context.Context, limit int) ([]domain.CompletionRecord, error) {
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, session_id, completed_at, exercise_id, step, actual_ms
		 FROM completions
		 ORDER BY completed_at DESC, step ASC
		 LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("querying completions: %w", err)
	}
	defer rows.Close()

	var out []domain.CompletionRecord
	for rows.Next() {
		var (
			r        domain.CompletionRecord
			actualMs int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Date, &r.ExerciseID, &r.Step, &actualMs); err != nil {
			return nil, fmt.Errorf("scanning completion: %w", err)
		}
		r.ActualDuration = time.Duration(actualMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
