package usage

import (
	"context"
	"sync"
	"testing"
	"time"
)

// captureBackend records enqueued entries for assertions.
type captureBackend struct {
	NoopBackend
	mu      sync.Mutex
	entries []Entry
}

func (b *captureBackend) Enqueue(e Entry) {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	backend := &captureBackend{}
	r := NewRecorder(backend)

	r.Record(Entry{Provider: "groq", Success: true})

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.entries) != 1 {
		t.Fatalf("got %d entries", len(backend.entries))
	}
	e := backend.entries[0]
	if e.ID == "" {
		t.Error("entry ID not assigned")
	}
	if e.RequestedAt.IsZero() {
		t.Error("entry timestamp not assigned")
	}
}

func TestCountersTrackOutcomes(t *testing.T) {
	r := NewRecorder(NoopBackend{})

	r.Record(Entry{Provider: "groq", Success: true, TokensEstimate: 100})
	r.Record(Entry{Provider: "gemini", Success: true, TokensEstimate: 50})
	r.Record(Entry{Provider: "fallback", Degraded: true, TokensEstimate: 25})

	snap := r.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("total = %d, want 3", snap.TotalRequests)
	}
	if snap.SuccessCount != 2 {
		t.Errorf("success = %d, want 2", snap.SuccessCount)
	}
	if snap.DegradedCount != 1 {
		t.Errorf("degraded = %d, want 1", snap.DegradedCount)
	}
	if snap.TotalTokens != 175 {
		t.Errorf("tokens = %d, want 175", snap.TotalTokens)
	}
}

func TestCountersConcurrentObserve(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Observe(Entry{Success: true, TokensEstimate: 1})
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TotalRequests != 100 || snap.TotalTokens != 100 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestCountersBootstrap(t *testing.T) {
	c := NewCounters()
	c.Bootstrap(GlobalStats{TotalRequests: 40, SuccessCount: 30, DegradedCount: 10, TotalTokens: 9000})
	c.Observe(Entry{Success: true, TokensEstimate: 10})

	snap := c.Snapshot()
	if snap.TotalRequests != 41 || snap.SuccessCount != 31 || snap.TotalTokens != 9010 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStatsOnNoopBackend(t *testing.T) {
	r := NewRecorder(NoopBackend{})
	r.Record(Entry{Provider: "groq", Success: true})

	report, err := r.Stats(context.Background(), time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatal(err)
	}
	if report.Counters.TotalRequests != 1 {
		t.Errorf("counters = %+v", report.Counters)
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	short := EstimateTokens("hello")
	long := EstimateTokens("hello world, this is a considerably longer piece of text for the estimator")
	if short <= 0 {
		t.Errorf("short estimate = %d", short)
	}
	if long <= short {
		t.Errorf("longer text estimated at %d tokens, short at %d", long, short)
	}
	if EstimateTokens("") != 0 {
		t.Error("empty text should estimate zero tokens")
	}
}

func TestNewBackendSelection(t *testing.T) {
	b, err := NewBackend(BackendConfig{DSN: ""})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(NoopBackend); !ok {
		t.Errorf("empty DSN selected %T, want NoopBackend", b)
	}

	if _, err := NewBackend(BackendConfig{DSN: "mysql://nope"}); err == nil {
		t.Error("unknown DSN scheme accepted")
	}
}
