package quota

import (
	"context"
	"hash"
	"hash/fnv"
	"sync"
	"time"

	log "github.com/costargen/costargen/internal/logging"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// Unlimited is the sentinel limit for subjects without a cap. Consumption
// is still counted for those subjects, only admission never refuses.
const Unlimited = -1

const numLedgerShards = 32

// Ledger serializes check-then-increment per subject over a Store.
// Subjects hash onto a fixed set of shard locks; holding the shard lock
// across the read and the write is what keeps concurrent requests from
// both taking the last remaining slot.
type Ledger struct {
	store  Store
	shards [numLedgerShards]sync.Mutex
	nowFn  func() time.Time

	dailyRetentionDays     int
	monthlyRetentionMonths int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var ledgerHasherPool = sync.Pool{
	New: func() any { return fnv.New64a() },
}

func shardIndex(subjectID string) uint64 {
	h := ledgerHasherPool.Get().(hash.Hash64)
	h.Reset()
	h.Write([]byte(subjectID))
	sum := h.Sum64()
	ledgerHasherPool.Put(h)
	return sum % numLedgerShards
}

// NewLedger creates a ledger over the given store. Retention windows of
// zero fall back to 7 days / 3 months.
func NewLedger(store Store, dailyRetentionDays, monthlyRetentionMonths int) *Ledger {
	return &Ledger{
		store:                  store,
		nowFn:                  time.Now,
		dailyRetentionDays:     dailyRetentionDays,
		monthlyRetentionMonths: monthlyRetentionMonths,
		stopChan:               make(chan struct{}),
	}
}

// Start launches the background prune loop.
func (l *Ledger) Start() {
	l.wg.Add(1)
	go l.pruneLoop()
}

// Stop halts the prune loop and closes the store.
func (l *Ledger) Stop() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return l.store.Close()
}

// Check reports the subject's current standing without mutating state.
// Storage failures propagate as ErrPersistenceUnavailable: admission
// fails closed for every subject type.
func (l *Ledger) Check(ctx context.Context, subjectID string, kind PeriodKind, limit int) (Decision, error) {
	now := l.nowFn()
	used, err := l.store.Get(ctx, subjectID, kind.Key(now))
	if err != nil {
		return Decision{}, err
	}
	return l.decide(used, limit, kind, now), nil
}

// Admit performs the atomic check-then-increment: if the subject is under
// its limit the count is charged immediately and the returned decision is
// Allowed. A request admitted here is considered consumed no matter how
// generation turns out, including the degraded fallback path.
func (l *Ledger) Admit(ctx context.Context, subjectID string, kind PeriodKind, limit int) (Decision, error) {
	idx := shardIndex(subjectID)
	l.shards[idx].Lock()
	defer l.shards[idx].Unlock()

	now := l.nowFn()
	key := kind.Key(now)

	used, err := l.store.Get(ctx, subjectID, key)
	if err != nil {
		return Decision{}, err
	}
	d := l.decide(used, limit, kind, now)
	if !d.Allowed {
		return d, nil
	}

	newCount, err := l.store.Increment(ctx, subjectID, key)
	if err != nil {
		return Decision{}, err
	}
	d.Used = newCount
	if limit != Unlimited {
		d.Remaining = limit - newCount
		if d.Remaining < 0 {
			d.Remaining = 0
		}
	}
	return d, nil
}

func (l *Ledger) decide(used, limit int, kind PeriodKind, now time.Time) Decision {
	d := Decision{
		Used:      used,
		Limit:     limit,
		ResetTime: kind.NextReset(now),
	}
	if limit == Unlimited {
		d.Allowed = true
		d.Remaining = Unlimited
		return d
	}
	d.Allowed = used < limit
	d.Remaining = limit - used
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d
}

func (l *Ledger) pruneLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *Ledger) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := l.nowFn()
	for _, kind := range []PeriodKind{PeriodDaily, PeriodMonthly} {
		cutoff := kind.RetentionCutoff(now, l.dailyRetentionDays, l.monthlyRetentionMonths)
		deleted, err := l.store.Prune(ctx, kind, cutoff)
		if err != nil {
			log.WithError(err).Warnf("quota prune failed for %s records", kind)
			continue
		}
		if deleted > 0 {
			log.Infof("pruned %d superseded %s quota records", deleted, kind)
		}
	}
}
