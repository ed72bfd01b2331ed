package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists quota records in Postgres (the hosted/Supabase
// deployment path). Connection establishment retries with backoff since
// hosted databases routinely cold-start.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	rp := retrypolicy.NewBuilder[*pgxpool.Pool]().
		WithMaxRetries(3).
		WithBackoff(500*time.Millisecond, 5*time.Second).
		Build()

	pool, err := failsafe.With(rp).WithContext(ctx).Get(func() (*pgxpool.Pool, error) {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("quota: connect postgres: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS quota_records (
		subject_id TEXT NOT NULL,
		period_key TEXT NOT NULL,
		count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (subject_id, period_key)
	);
	CREATE INDEX IF NOT EXISTS idx_quota_period_key ON quota_records(period_key);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("quota: initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, subjectID, periodKey string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count FROM quota_records WHERE subject_id = $1 AND period_key = $2
	`, subjectID, periodKey).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return count, nil
}

func (s *PostgresStore) Increment(ctx context.Context, subjectID, periodKey string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO quota_records (subject_id, period_key, count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (subject_id, period_key)
		DO UPDATE SET count = quota_records.count + 1, updated_at = NOW()
		RETURNING count
	`, subjectID, periodKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return count, nil
}

func (s *PostgresStore) Prune(ctx context.Context, kind PeriodKind, cutoffKey string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM quota_records WHERE length(period_key) = $1 AND period_key < $2
	`, len(kind.Key(nowUTC())), cutoffKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
