package quota

import "time"

func nowUTC() time.Time { return time.Now().UTC() }

// PeriodKind selects which rolling window a quota record tracks.
type PeriodKind string

const (
	// PeriodDaily keys records by UTC date (YYYY-MM-DD).
	PeriodDaily PeriodKind = "daily"

	// PeriodMonthly keys records by UTC year-month (YYYY-MM).
	PeriodMonthly PeriodKind = "monthly"
)

// Key returns the period key for t in this kind's window.
func (k PeriodKind) Key(t time.Time) string {
	t = t.UTC()
	if k == PeriodMonthly {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// NextReset returns the instant the current period rolls over.
func (k PeriodKind) NextReset(t time.Time) time.Time {
	t = t.UTC()
	if k == PeriodMonthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// RetentionCutoff returns the oldest period key still retained at time t.
// Daily records keep 7 days of history, monthly records 3 months; anything
// with a smaller key is eligible for pruning.
func (k PeriodKind) RetentionCutoff(t time.Time, dailyDays, monthlyMonths int) string {
	t = t.UTC()
	if k == PeriodMonthly {
		if monthlyMonths <= 0 {
			monthlyMonths = 3
		}
		return k.Key(t.AddDate(0, -monthlyMonths, 0))
	}
	if dailyDays <= 0 {
		dailyDays = 7
	}
	return k.Key(t.AddDate(0, 0, -dailyDays))
}
