// Package quota implements the daily admission quota: an optimistic per-day
// counter with compensating rollback. Admission is never blocked on a lock;
// a reservation is incremented first and the rare overrun race is corrected
// after the fact by the caller that observes it on its own reservation.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/store"
)

const (
	// incrementAttempts bounds the retry loop around a contended increment.
	incrementAttempts = 10
	// incrementBackoff is the pause between increment attempts.
	incrementBackoff = 50 * time.Millisecond
	// pruneAfterDays is how long stale counters are kept before pruning.
	pruneAfterDays = 2
)

// DateLayout formats counter keys. Counters are keyed by the caller's local
// calendar day.
const DateLayout = "2006-01-02"

// Ledger is the per-day quota counter.
type Ledger struct {
	store *store.Store
	max   int
	log   *mlog.Log
	now   func() time.Time
}

// NewLedger builds a ledger enforcing the given daily maximum.
func NewLedger(s *store.Store, max int, log *mlog.Log) *Ledger {
	return &Ledger{store: s, max: max, log: log, now: time.Now}
}

// SetNow overrides the clock. Test use only.
func (l *Ledger) SetNow(now func() time.Time) {
	l.now = now
}

// Max returns the configured daily maximum.
func (l *Ledger) Max() int {
	return l.max
}

// Today returns the current counter key.
func (l *Ledger) Today() string {
	return l.now().Format(DateLayout)
}

// Count returns the committed count for date.
func (l *Ledger) Count(ctx context.Context, date string) (int, error) {
	return l.store.QuotaCount(ctx, date)
}

// UnderLimit reports whether the committed count for date is strictly below
// the daily maximum. This is the admission gate's pre-check; it is
// deliberately separate from Reserve, which is why two near-simultaneous
// admissions can both pass it and later need reconciliation.
func (l *Ledger) UnderLimit(ctx context.Context, date string) (bool, error) {
	count, err := l.store.QuotaCount(ctx, date)
	if err != nil {
		return false, err
	}
	return count < l.max, nil
}

// Reserve increments the counter for date, retrying a bounded number of
// times against transient contention. Exhausting the retries is logged as
// an error and returned as a reservation failure.
func (l *Ledger) Reserve(ctx context.Context, date string) error {
	var lastErr error
	for attempt := 0; attempt < incrementAttempts; attempt++ {
		if lastErr = l.store.QuotaIncrement(ctx, date); lastErr == nil {
			return nil
		}
		time.Sleep(incrementBackoff)
	}
	_ = l.log.Writef(mlog.CatError, "Failed to increment daily counter for %s: %v", date, lastErr)
	return fmt.Errorf("quota: reserve %s: %w", date, lastErr)
}

// Reconcile re-reads the committed count immediately after a successful
// reservation and reports whether it overran the maximum. The caller that
// observes the overrun rolls back its own reservation.
func (l *Ledger) Reconcile(ctx context.Context, date string) (bool, error) {
	count, err := l.store.QuotaCount(ctx, date)
	if err != nil {
		return false, err
	}
	return count > l.max, nil
}

// Decrement returns a reservation slot, floored at zero. Used on rollback
// and on execution failure: a slot is spent only once the mission truly
// completes.
func (l *Ledger) Decrement(ctx context.Context, date string) error {
	return l.store.QuotaDecrement(ctx, date)
}

// Prune opportunistically deletes counters more than two days stale.
func (l *Ledger) Prune(ctx context.Context) error {
	cutoff := l.now().AddDate(0, 0, -pruneAfterDays).Format(DateLayout)
	return l.store.QuotaPrune(ctx, cutoff)
}
