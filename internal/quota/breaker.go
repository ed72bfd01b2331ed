package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	log "github.com/costargen/costargen/internal/logging"
)

// BreakerStore wraps a Store with a circuit breaker so a dead database
// fails fast to ErrPersistenceUnavailable instead of timing out every
// admission check.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerStore(inner Store) *BreakerStore {
	settings := gobreaker.Settings{
		Name:     "quota-store",
		Interval: 30 * time.Second,
		Timeout:  15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("%s breaker %s -> %s", name, from, to)
		},
	}
	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (s *BreakerStore) Get(ctx context.Context, subjectID, periodKey string) (int, error) {
	v, err := s.cb.Execute(func() (any, error) {
		return s.inner.Get(ctx, subjectID, periodKey)
	})
	if err != nil {
		return 0, wrapBreakerErr(err)
	}
	return v.(int), nil
}

func (s *BreakerStore) Increment(ctx context.Context, subjectID, periodKey string) (int, error) {
	v, err := s.cb.Execute(func() (any, error) {
		return s.inner.Increment(ctx, subjectID, periodKey)
	})
	if err != nil {
		return 0, wrapBreakerErr(err)
	}
	return v.(int), nil
}

func (s *BreakerStore) Prune(ctx context.Context, kind PeriodKind, cutoffKey string) (int64, error) {
	return s.inner.Prune(ctx, kind, cutoffKey)
}

func (s *BreakerStore) Close() error { return s.inner.Close() }

func wrapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%w: circuit open", ErrPersistenceUnavailable)
	}
	return err
}
