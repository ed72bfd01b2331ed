// Package quota decides admission and tracks per-subject consumption over
// rolling daily and monthly windows. The ledger serializes check-then-
// increment per subject so concurrent requests can never over-admit past
// a subject's limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrPersistenceUnavailable signals that admission cannot be decided
// because the backing store is down. Callers surface this as a 5xx; the
// ledger never fails open.
var ErrPersistenceUnavailable = errors.New("quota: persistence unavailable")

// Store is the persistence contract for quota records. Implementations
// need not serialize per subject; the ledger does that above them.
type Store interface {
	// Get returns the count for the subject's record under periodKey,
	// or 0 when no record exists yet.
	Get(ctx context.Context, subjectID, periodKey string) (int, error)

	// Increment adds 1 to the subject's record under periodKey, creating
	// it at 1 when absent, and returns the new count.
	Increment(ctx context.Context, subjectID, periodKey string) (int, error)

	// Prune deletes records of the given kind whose period key sorts
	// before cutoffKey. Superseded records are kept until then for audit.
	Prune(ctx context.Context, kind PeriodKind, cutoffKey string) (int64, error)

	// Close releases underlying resources.
	Close() error
}

// NewStore selects a store implementation from the DSN scheme:
// postgres:// for hosted Postgres, sqlite:// for a local database file,
// file:// for the JSON flat-file demo store, and empty for in-memory.
func NewStore(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file://"):
		return NewFileStore(strings.TrimPrefix(dsn, "file://"))
	}
	return nil, fmt.Errorf("quota: unknown store DSN %q", dsn)
}

// MemoryStore keeps records in a map. Used in demo mode and tests; state
// does not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]int // subjectID + "\x00" + periodKey -> count
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]int)}
}

func memKey(subjectID, periodKey string) string {
	return subjectID + "\x00" + periodKey
}

func (s *MemoryStore) Get(_ context.Context, subjectID, periodKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[memKey(subjectID, periodKey)], nil
}

func (s *MemoryStore) Increment(_ context.Context, subjectID, periodKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey(subjectID, periodKey)
	s.records[k]++
	return s.records[k], nil
}

func (s *MemoryStore) Prune(_ context.Context, kind PeriodKind, cutoffKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for k := range s.records {
		idx := strings.IndexByte(k, 0)
		if idx < 0 {
			continue
		}
		periodKey := k[idx+1:]
		if kindOfKey(periodKey) == kind && periodKey < cutoffKey {
			delete(s.records, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Close() error { return nil }

// kindOfKey infers the period kind from the key shape: YYYY-MM is monthly,
// YYYY-MM-DD is daily.
func kindOfKey(periodKey string) PeriodKind {
	if len(periodKey) == len("2006-01") {
		return PeriodMonthly
	}
	return PeriodDaily
}
