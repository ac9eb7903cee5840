// Package retry implements the bounded, fixed-delay retry policy and the
// decaying consecutive-failure counter behind it. The counter is persisted
// with its own expiry and is cleared by the health monitor once the last
// failure is old enough, so a long idle period restores the full retry
// budget without requiring a success.
package retry

import (
	"context"
	"strconv"
	"time"

	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/store"
)

const (
	failureCountName = "failure_count"
	lastFailureName  = "last_failure"

	// lastFailureTTL bounds how long the last-failure timestamp itself
	// lingers, independent of the counter's decay window.
	lastFailureTTL = 24 * time.Hour
)

// Rescheduler is the slice of the job scheduler the policy needs.
type Rescheduler interface {
	ScheduleOnce(itemID string, notBefore time.Time) (string, error)
}

// Policy decides whether a failed mission is rescheduled.
type Policy struct {
	store *store.Store
	sched Rescheduler
	log   *mlog.Log

	cap        int
	delay      time.Duration
	counterTTL time.Duration
	now        func() time.Time
}

// NewPolicy builds a policy with the given consecutive-failure cap, retry
// delay and counter decay window.
func NewPolicy(s *store.Store, sched Rescheduler, log *mlog.Log, cap int, delay, decay time.Duration) *Policy {
	return &Policy{
		store:      s,
		sched:      sched,
		log:        log,
		cap:        cap,
		delay:      delay,
		counterTTL: decay,
		now:        time.Now,
	}
}

// SetNow overrides the clock. Test use only.
func (p *Policy) SetNow(now func() time.Time) {
	p.now = now
}

// FailureCount returns the current consecutive-failure count. An expired
// counter reads as zero.
func (p *Policy) FailureCount(ctx context.Context) (int, error) {
	v, ok, err := p.store.GetSingleton(ctx, failureCountName)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// LastFailure returns when the most recent failure was recorded, or the
// zero time when none is on record.
func (p *Policy) LastFailure(ctx context.Context) (time.Time, error) {
	v, ok, err := p.store.GetSingleton(ctx, lastFailureName)
	if err != nil || !ok {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0), nil
}

// OnFailure records one execution failure and, while the consecutive-failure
// count is below the cap, reschedules the item after the fixed delay.
// Returns whether a retry was scheduled.
func (p *Policy) OnFailure(ctx context.Context, itemID string) (bool, error) {
	if err := p.store.SetSingleton(ctx, lastFailureName,
		strconv.FormatInt(p.now().Unix(), 10), lastFailureTTL); err != nil {
		return false, err
	}

	count, err := p.FailureCount(ctx)
	if err != nil {
		return false, err
	}
	if count >= p.cap {
		_ = p.log.Writef(mlog.CatCritical,
			"Retry budget exhausted for item %s after %d consecutive failures", itemID, count)
		return false, nil
	}

	if err := p.store.SetSingleton(ctx, failureCountName,
		strconv.Itoa(count+1), p.counterTTL); err != nil {
		return false, err
	}
	if _, err := p.sched.ScheduleOnce(itemID, p.now().Add(p.delay)); err != nil {
		_ = p.log.Writef(mlog.CatError, "Failed to reschedule item %s for retry: %v", itemID, err)
		return false, err
	}
	_ = p.log.Writef(mlog.CatRetry, "Rescheduled item %s for retry", itemID)
	return true, nil
}

// ClearFailures resets the counter and the last-failure timestamp,
// restoring the full retry budget. Invoked by the health monitor once the
// last failure is older than the decay window, and by the operator reset.
func (p *Policy) ClearFailures(ctx context.Context) error {
	if err := p.store.DeleteSingleton(ctx, failureCountName); err != nil {
		return err
	}
	return p.store.DeleteSingleton(ctx, lastFailureName)
}

// DecayDue reports whether the last failure is older than the decay window.
// No failure on record means nothing to decay.
func (p *Policy) DecayDue(ctx context.Context) (bool, error) {
	last, err := p.LastFailure(ctx)
	if err != nil || last.IsZero() {
		return false, err
	}
	return p.now().Sub(last) > p.counterTTL, nil
}
