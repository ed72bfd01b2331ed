package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubInvoker is a canned invoker for registry tests.
type stubInvoker struct {
	name string
}

func (s stubInvoker) Name() string { return s.name }
func (s stubInvoker) Invoke(context.Context, string, GenerationParams) (string, error) {
	return "ok", nil
}

func newTestRegistry(configs ...Config) *Registry {
	invokers := make([]Invoker, len(configs))
	for i, cfg := range configs {
		invokers[i] = stubInvoker{name: cfg.Name}
	}
	return NewRegistry(configs, invokers)
}

func TestAvailableOrdersByPriority(t *testing.T) {
	r := newTestRegistry(
		Config{Name: "third", Priority: 3, DailyCallBudget: UnlimitedBudget},
		Config{Name: "first", Priority: 1, DailyCallBudget: UnlimitedBudget},
		Config{Name: "second", Priority: 2, DailyCallBudget: UnlimitedBudget},
	)

	got := r.Available()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("Available() returned %d invokers, want %d", len(got), len(want))
	}
	for i, inv := range got {
		if inv.Name() != want[i] {
			t.Errorf("position %d = %s, want %s", i, inv.Name(), want[i])
		}
	}
}

func TestBudgetExhaustionRemovesProvider(t *testing.T) {
	r := newTestRegistry(
		Config{Name: "tiny", Priority: 1, DailyCallBudget: 2},
		Config{Name: "big", Priority: 2, DailyCallBudget: UnlimitedBudget},
	)

	// Failed attempts consume budget the same as successes.
	if !r.TryAcquire("tiny") {
		t.Fatal("first slot refused")
	}
	r.RecordCall("tiny", true)
	if !r.TryAcquire("tiny") {
		t.Fatal("second slot refused")
	}
	r.RecordCall("tiny", false)

	if r.TryAcquire("tiny") {
		t.Error("acquire succeeded past the daily budget")
	}
	got := r.Available()
	if len(got) != 1 || got[0].Name() != "big" {
		t.Errorf("exhausted provider still available: %v", names(got))
	}
}

func TestTryAcquireSerializesBudget(t *testing.T) {
	r := newTestRegistry(Config{Name: "one", Priority: 1, DailyCallBudget: 1})

	var wg sync.WaitGroup
	var acquired int64
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.TryAcquire("one") {
				atomic.AddInt64(&acquired, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if acquired != 1 {
		t.Errorf("%d goroutines acquired a slot from a budget of 1", acquired)
	}
	if calls := r.Statuses()[0].CallsToday; calls != 1 {
		t.Errorf("calls_today = %d, want 1", calls)
	}
}

func TestTryAcquireUnknownProvider(t *testing.T) {
	r := newTestRegistry()
	if r.TryAcquire("nope") {
		t.Error("acquire succeeded for an unregistered provider")
	}
}

func TestDisableUntilRollover(t *testing.T) {
	r := newTestRegistry(
		Config{Name: "flaky", Priority: 1, DailyCallBudget: UnlimitedBudget},
	)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.nowFn = func() time.Time { return now }

	// Prime the day so rollover state is current before disabling.
	if len(r.Available()) != 1 {
		t.Fatal("provider should start enabled")
	}
	r.Disable("flaky", "auth_or_quota_exceeded")
	if len(r.Available()) != 0 {
		t.Fatal("disabled provider still available")
	}

	st := r.Statuses()[0]
	if st.Enabled || st.DisabledReason != "auth_or_quota_exceeded" {
		t.Errorf("status = %+v", st)
	}

	// Next UTC day re-enables automatically.
	now = now.AddDate(0, 0, 1)
	if len(r.Available()) != 1 {
		t.Error("provider not re-enabled after daily rollover")
	}
}

func TestRolloverResetsDailyCalls(t *testing.T) {
	r := newTestRegistry(
		Config{Name: "capped", Priority: 1, DailyCallBudget: 1},
	)
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	r.nowFn = func() time.Time { return now }

	if !r.TryAcquire("capped") {
		t.Fatal("slot refused")
	}
	r.RecordCall("capped", true)
	if len(r.Available()) != 0 {
		t.Fatal("provider should be over budget")
	}

	now = now.Add(time.Hour)
	if len(r.Available()) != 1 {
		t.Error("budget not reset after UTC day change")
	}
	if calls := r.Statuses()[0].CallsToday; calls != 0 {
		t.Errorf("calls_today = %d after rollover, want 0", calls)
	}
}

func TestNextAvailableFallbackMode(t *testing.T) {
	r := newTestRegistry()
	if got := r.NextAvailable(); got != "fallback_mode" {
		t.Errorf("NextAvailable() = %q, want fallback_mode", got)
	}

	r = newTestRegistry(Config{Name: "groq", Priority: 1, DailyCallBudget: UnlimitedBudget})
	if got := r.NextAvailable(); got != "groq" {
		t.Errorf("NextAvailable() = %q, want groq", got)
	}
}

func TestCredentialUsableRejectsPlaceholders(t *testing.T) {
	cases := map[string]bool{
		"":                      false,
		"your-api-key-here":     false,
		"YOUR_KEY":              false,
		"changeme":              false,
		"xxxxx":                 false,
		"gsk_live_abc123def456": true,
	}
	for key, want := range cases {
		if got := credentialUsable(key); got != want {
			t.Errorf("credentialUsable(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestRecordCallTracksOutcome(t *testing.T) {
	r := newTestRegistry(Config{Name: "p", Priority: 1, DailyCallBudget: UnlimitedBudget})
	for _, success := range []bool{true, true, false} {
		if !r.TryAcquire("p") {
			t.Fatal("unlimited budget refused a slot")
		}
		r.RecordCall("p", success)
	}

	st := r.Statuses()[0]
	if st.SuccessCount != 2 || st.ErrorCount != 1 || st.CallsToday != 3 {
		t.Errorf("status = %+v", st)
	}
	if st.LastInvokedAt.IsZero() {
		t.Error("last_invoked_at not recorded")
	}
}

func names(invokers []Invoker) []string {
	out := make([]string, len(invokers))
	for i, inv := range invokers {
		out[i] = inv.Name()
	}
	return out
}
