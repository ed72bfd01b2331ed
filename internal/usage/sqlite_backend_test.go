package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"), BackendConfig{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func TestSQLiteRoundTrip(t *testing.T) {
	b := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b.Enqueue(Entry{ID: "e1", SubjectID: "alice", Provider: "groq", RequestedAt: now, Success: true, TokensEstimate: 120, ResponseTimeMS: 300, Attempts: 1})
	b.Enqueue(Entry{ID: "e2", SubjectID: "alice", Provider: "fallback", RequestedAt: now, Degraded: true, ErrorKind: "timeout", TokensEstimate: 40, Attempts: 3})
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := b.QueryGlobalStats(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 2 || stats.SuccessCount != 1 || stats.DegradedCount != 1 {
		t.Errorf("global stats = %+v", stats)
	}
	if stats.TotalTokens != 160 {
		t.Errorf("tokens = %d, want 160", stats.TotalTokens)
	}

	perProvider, err := b.QueryProviderStats(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(perProvider) != 2 {
		t.Fatalf("provider stats rows = %d, want 2", len(perProvider))
	}
}

func TestSQLiteCleanup(t *testing.T) {
	b := newTestSQLite(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -60)
	b.Enqueue(Entry{ID: "stale", Provider: "groq", RequestedAt: old, Success: true})
	b.Enqueue(Entry{ID: "fresh", Provider: "groq", RequestedAt: time.Now().UTC(), Success: true})
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	deleted, err := b.Cleanup(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	stats, err := b.QueryGlobalStats(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("remaining = %d, want 1", stats.TotalRequests)
	}
}
