package usage

import "sync/atomic"

// Counters holds lock-free request totals for instant status reads.
// Durable history lives in the backend; these survive only the process.
type Counters struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	degradedCount atomic.Int64
	totalTokens   atomic.Int64
}

func NewCounters() *Counters { return &Counters{} }

// Observe folds one completed entry into the counters.
func (c *Counters) Observe(e Entry) {
	if c == nil {
		return
	}
	c.totalRequests.Add(1)
	if e.Success {
		c.successCount.Add(1)
	}
	if e.Degraded {
		c.degradedCount.Add(1)
	}
	c.totalTokens.Add(e.TokensEstimate)
}

// Bootstrap seeds counters from persisted history at startup.
func (c *Counters) Bootstrap(stats GlobalStats) {
	if c == nil {
		return
	}
	c.totalRequests.Store(stats.TotalRequests)
	c.successCount.Store(stats.SuccessCount)
	c.degradedCount.Store(stats.DegradedCount)
	c.totalTokens.Store(stats.TotalTokens)
}

// Snapshot returns a point-in-time copy of the counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	if c == nil {
		return CounterSnapshot{}
	}
	return CounterSnapshot{
		TotalRequests: c.totalRequests.Load(),
		SuccessCount:  c.successCount.Load(),
		DegradedCount: c.degradedCount.Load(),
		TotalTokens:   c.totalTokens.Load(),
	}
}

// CounterSnapshot is an immutable view of counter values.
type CounterSnapshot struct {
	TotalRequests int64 `json:"total_requests"`
	SuccessCount  int64 `json:"success_count"`
	DegradedCount int64 `json:"degraded_count"`
	TotalTokens   int64 `json:"total_tokens"`
}
