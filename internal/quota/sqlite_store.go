package quota

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists quota records in a local SQLite database. The
// increment uses an upsert so the count update is atomic at the database
// level as well as under the ledger's per-subject lock.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("quota: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("quota: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("quota: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS quota_records (
		subject_id TEXT NOT NULL,
		period_key TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (subject_id, period_key)
	);
	CREATE INDEX IF NOT EXISTS idx_quota_period_key ON quota_records(period_key);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("quota: initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, subjectID, periodKey string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count FROM quota_records WHERE subject_id = ? AND period_key = ?
	`, subjectID, periodKey).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return count, nil
}

func (s *SQLiteStore) Increment(ctx context.Context, subjectID, periodKey string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO quota_records (subject_id, period_key, count, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(subject_id, period_key)
		DO UPDATE SET count = count + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING count
	`, subjectID, periodKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return count, nil
}

func (s *SQLiteStore) Prune(ctx context.Context, kind PeriodKind, cutoffKey string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM quota_records WHERE length(period_key) = ? AND period_key < ?
	`, len(kind.Key(nowUTC())), cutoffKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
