package usage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend is the persistence contract for usage entries. Implementations
// must be safe for concurrent use.
type Backend interface {
	// Enqueue adds an entry to the write queue without blocking.
	Enqueue(entry Entry)

	// Flush forces pending entries to storage.
	Flush(ctx context.Context) error

	// QueryGlobalStats returns aggregate statistics since the given time.
	QueryGlobalStats(ctx context.Context, since time.Time) (*GlobalStats, error)

	// QueryDailyStats returns per-day statistics since the given time.
	QueryDailyStats(ctx context.Context, since time.Time) ([]DailyStats, error)

	// QueryProviderStats returns per-provider statistics since the given time.
	QueryProviderStats(ctx context.Context, since time.Time) ([]ProviderStats, error)

	// Cleanup removes entries older than the given time.
	Cleanup(ctx context.Context, before time.Time) (int64, error)

	// Start begins background workers (write loop, cleanup loop).
	Start() error

	// Stop shuts down the backend, flushing pending writes.
	Stop() error
}

// BackendConfig holds parameters for backend initialization.
type BackendConfig struct {
	DSN           string
	BatchSize     int
	FlushInterval time.Duration
	RetentionDays int
}

// NewBackend selects a backend from the DSN scheme. An empty DSN returns
// the no-op backend: counters still work, history is not persisted.
func NewBackend(cfg BackendConfig) (Backend, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch {
	case dsn == "":
		return NoopBackend{}, nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresBackend(dsn, cfg)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteBackend(strings.TrimPrefix(dsn, "sqlite://"), cfg)
	}
	return nil, fmt.Errorf("usage: unknown backend DSN %q", dsn)
}

// NoopBackend discards entries. Used in demo mode.
type NoopBackend struct{}

func (NoopBackend) Enqueue(Entry)                {}
func (NoopBackend) Flush(context.Context) error  { return nil }
func (NoopBackend) Start() error                 { return nil }
func (NoopBackend) Stop() error                  { return nil }
func (NoopBackend) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }

func (NoopBackend) QueryGlobalStats(context.Context, time.Time) (*GlobalStats, error) {
	return &GlobalStats{}, nil
}

func (NoopBackend) QueryDailyStats(context.Context, time.Time) ([]DailyStats, error) {
	return nil, nil
}

func (NoopBackend) QueryProviderStats(context.Context, time.Time) ([]ProviderStats, error) {
	return nil, nil
}
