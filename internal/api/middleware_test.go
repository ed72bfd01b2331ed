package api

import (
	"testing"
	"time"
)

func TestClientLimitersEvictIdleEntries(t *testing.T) {
	l := newClientLimiters(10, 5)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.lastSweep = now

	l.get("a", now)
	l.get("b", now)
	if l.size() != 2 {
		t.Fatalf("size = %d, want 2", l.size())
	}

	// "b" stays active; "a" goes idle past the eviction window.
	later := now.Add(limiterIdleAfter / 2)
	l.get("b", later)

	after := now.Add(limiterIdleAfter + time.Minute)
	l.get("c", after)
	if l.size() != 2 {
		t.Errorf("size = %d after sweep, want 2 (idle entry not evicted)", l.size())
	}
	l.mu.Lock()
	_, hasA := l.clients["a"]
	_, hasC := l.clients["c"]
	l.mu.Unlock()
	if hasA || !hasC {
		t.Errorf("hasA = %v, hasC = %v after sweep", hasA, hasC)
	}
}

func TestClientLimitersKeepRateStatePerClient(t *testing.T) {
	l := newClientLimiters(1, 1)
	now := time.Now()

	if !l.get("x", now).Allow() {
		t.Fatal("first request should pass")
	}
	if l.get("x", now).Allow() {
		t.Error("burst of 1 allowed a second immediate request")
	}
	if !l.get("y", now).Allow() {
		t.Error("independent client throttled by another's bucket")
	}
}
