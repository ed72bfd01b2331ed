// Package usage records one immutable log entry per completed generation
// request and serves the aggregate queries behind the admin dashboard.
// Recording is observability, not correctness: it never blocks or fails
// the caller's response.
package usage

import "time"

// Entry is the append-only record of one end-to-end generation request.
// One entry summarizes the whole fallback chain: Provider names the
// backend that determined the final outcome ("fallback" when the chain
// was exhausted), Attempts counts every provider tried.
type Entry struct {
	ID             string    `json:"id"`
	SubjectID      string    `json:"subject_id,omitempty"` // empty for anonymous
	Provider       string    `json:"provider_name"`
	RequestedAt    time.Time `json:"request_time"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	Success        bool      `json:"success"`
	ErrorKind      string    `json:"error_kind,omitempty"` // last failure when degraded
	TokensEstimate int64     `json:"tokens_estimate"`
	Degraded       bool      `json:"degraded"`
	Attempts       int       `json:"attempts"`
}

// GlobalStats aggregates all entries since a point in time.
type GlobalStats struct {
	TotalRequests int64 `json:"total_requests"`
	SuccessCount  int64 `json:"success_count"`
	DegradedCount int64 `json:"degraded_count"`
	TotalTokens   int64 `json:"total_tokens"`
	AvgLatencyMS  int64 `json:"avg_latency_ms"`
}

// DailyStats aggregates entries for one UTC day.
type DailyStats struct {
	Day      string `json:"day"`
	Requests int64  `json:"requests"`
	Tokens   int64  `json:"tokens"`
}

// ProviderStats aggregates entries per provider.
type ProviderStats struct {
	Provider     string `json:"provider"`
	Requests     int64  `json:"requests"`
	SuccessCount int64  `json:"success_count"`
	FailureCount int64  `json:"failure_count"`
	AvgLatencyMS int64  `json:"avg_latency_ms"`
	TotalTokens  int64  `json:"total_tokens"`
}
