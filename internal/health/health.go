// Package health runs the recurring self-healing sweep: stuck missions are
// timed out, the decayed failure counter is reset, stale quota counters are
// pruned and the mission log is rotated. Each step is independent; a failure
// in one is logged and the sweep continues.
package health

import (
	"context"
	"time"

	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
	"github.com/onwardseo/missiond/internal/retry"
)

// Scheduler is the slice of the job scheduler used to recover pending
// missions after a restart.
type Scheduler interface {
	ScheduleOnce(itemID string, notBefore time.Time) (string, error)
}

// Monitor is the health sweep.
type Monitor struct {
	records *mission.Records
	policy  *retry.Policy
	ledger  *quota.Ledger
	log     *mlog.Log

	staleAfter time.Duration
	now        func() time.Time
}

// NewMonitor builds a monitor that times out missions stuck in scheduled
// for longer than staleAfter.
func NewMonitor(records *mission.Records, policy *retry.Policy, ledger *quota.Ledger,
	log *mlog.Log, staleAfter time.Duration) *Monitor {
	return &Monitor{
		records:    records,
		policy:     policy,
		ledger:     ledger,
		log:        log,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetNow overrides the clock. Test use only.
func (m *Monitor) SetNow(now func() time.Time) {
	m.now = now
}

// Sweep runs one full pass. Intended as the scheduler's recurring callback.
func (m *Monitor) Sweep(ctx context.Context) {
	if err := m.timeoutStuck(ctx); err != nil {
		_ = m.log.Writef(mlog.CatError, "Health check failed to sweep stuck missions: %v", err)
	}
	if err := m.decayFailures(ctx); err != nil {
		_ = m.log.Writef(mlog.CatError, "Health check failed to decay failure counter: %v", err)
	}
	if err := m.ledger.Prune(ctx); err != nil {
		_ = m.log.Writef(mlog.CatError, "Health check failed to prune quota counters: %v", err)
	}
	if _, err := m.log.RotateIfNeeded(); err != nil {
		_ = m.log.Writef(mlog.CatError, "Health check failed to rotate mission log: %v", err)
	}
}

// timeoutStuck marks missions that have sat in scheduled past the stale
// window as timed out. Admission time comes from the mission snapshot; a
// record without one is left for the next sweep rather than guessed at.
func (m *Monitor) timeoutStuck(ctx context.Context) error {
	ids, err := m.records.WithStatus(ctx, mission.StatusScheduled)
	if err != nil {
		return err
	}
	cutoff := m.now().Add(-m.staleAfter)
	for _, id := range ids {
		snap, ok, err := m.records.Snapshot(ctx, id)
		if err != nil {
			return err
		}
		if !ok || !snap.AdmittedAt.Before(cutoff) {
			continue
		}
		if err := m.records.SetStatus(ctx, id, mission.StatusTimeout); err != nil {
			return err
		}
		if err := m.records.SetCompletedAt(ctx, id, m.now()); err != nil {
			return err
		}
		_ = m.log.Writef(mlog.CatHealth, "Item %s stuck in scheduled - marked timeout", id)
	}
	return nil
}

// decayFailures clears the consecutive-failure counter once the last
// failure is older than the decay window, restoring the full retry budget.
func (m *Monitor) decayFailures(ctx context.Context) error {
	due, err := m.policy.DecayDue(ctx)
	if err != nil || !due {
		return err
	}
	if err := m.policy.ClearFailures(ctx); err != nil {
		return err
	}
	_ = m.log.Writef(mlog.CatHealth, "Failure counter reset after quiet period")
	return nil
}

// RecoverPending re-enqueues missions left in a pending status by a daemon
// restart. Scheduled jobs are kept in memory only, so anything admitted but
// not yet terminal must be put back on the queue at startup.
func (m *Monitor) RecoverPending(ctx context.Context, sched Scheduler, delay time.Duration) (int, error) {
	recovered := 0
	for _, s := range []mission.Status{mission.StatusScheduling, mission.StatusScheduled} {
		ids, err := m.records.WithStatus(ctx, s)
		if err != nil {
			return recovered, err
		}
		for _, id := range ids {
			if _, err := sched.ScheduleOnce(id, m.now().Add(delay)); err != nil {
				return recovered, err
			}
			if s == mission.StatusScheduling {
				if err := m.records.SetStatus(ctx, id, mission.StatusScheduled); err != nil {
					return recovered, err
				}
			}
			recovered++
			_ = m.log.Writef(mlog.CatHealth, "Recovered pending mission for item %s", id)
		}
	}
	return recovered, nil
}
