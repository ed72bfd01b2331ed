package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder is the write path for usage entries. It updates lock-free
// counters and hands persistence to a backend queue; Record never blocks
// and never returns an error, so a broken usage store cannot fail a
// generation request.
type Recorder struct {
	counters *Counters
	backend  Backend
}

// NewRecorder constructs a recorder over the given backend.
func NewRecorder(backend Backend) *Recorder {
	if backend == nil {
		backend = NoopBackend{}
	}
	return &Recorder{
		counters: NewCounters(),
		backend:  backend,
	}
}

// Start launches the backend workers and seeds counters from history.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.backend.Start(); err != nil {
		return err
	}
	if stats, err := r.backend.QueryGlobalStats(ctx, time.Time{}); err == nil && stats != nil {
		r.counters.Bootstrap(*stats)
	}
	return nil
}

// Stop shuts down the backend, flushing pending entries.
func (r *Recorder) Stop() error {
	if r == nil {
		return nil
	}
	return r.backend.Stop()
}

// Record accepts one completed generation entry. Missing ID and timestamp
// fields are filled in here so callers only describe the outcome.
func (r *Recorder) Record(entry Entry) {
	if r == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RequestedAt.IsZero() {
		entry.RequestedAt = time.Now().UTC()
	}
	r.counters.Observe(entry)
	r.backend.Enqueue(entry)
}

// Snapshot returns the in-process counter totals.
func (r *Recorder) Snapshot() CounterSnapshot {
	if r == nil {
		return CounterSnapshot{}
	}
	return r.counters.Snapshot()
}

// Report combines counters with persisted aggregates for the stats API.
type Report struct {
	Counters  CounterSnapshot `json:"counters"`
	Global    *GlobalStats    `json:"global,omitempty"`
	Daily     []DailyStats    `json:"daily,omitempty"`
	Providers []ProviderStats `json:"providers,omitempty"`
}

// Stats flushes pending writes and assembles a report covering entries
// recorded since the given time.
func (r *Recorder) Stats(ctx context.Context, since time.Time) (*Report, error) {
	report := &Report{Counters: r.Snapshot()}

	if err := r.backend.Flush(ctx); err != nil {
		return report, err
	}

	global, err := r.backend.QueryGlobalStats(ctx, since)
	if err != nil {
		return report, err
	}
	report.Global = global

	daily, err := r.backend.QueryDailyStats(ctx, since)
	if err != nil {
		return report, err
	}
	report.Daily = daily

	providers, err := r.backend.QueryProviderStats(ctx, since)
	if err != nil {
		return report, err
	}
	report.Providers = providers

	return report, nil
}
