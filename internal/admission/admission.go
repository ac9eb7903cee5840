// Package admission implements the gate deciding whether an inbound content
// item may be scheduled for duplication at all. Rejections mutate nothing
// but the mission log; an accepted item gets its mission record created,
// the daily quota optimistically reserved and a delayed job placed on the
// scheduler, with after-the-fact reconciliation rolling back the rare
// quota-race overrun.
//
// The breaker is deliberately not consulted here -- busy is a transient
// execution-time condition, not an admission concern.
package admission

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/onwardseo/missiond/internal/content"
	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
)

// Decision is the admission outcome.
type Decision string

const (
	// Accept admits the item; a mission record now exists.
	Accept Decision = "accept"
	// RejectNotEligibleType rejects items that are not posts.
	RejectNotEligibleType Decision = "not-eligible-type"
	// RejectUnauthenticatedCaller rejects requests whose caller-authenticity
	// signal is negative.
	RejectUnauthenticatedCaller Decision = "unauthenticated-caller"
	// RejectAlreadyProcessed rejects items that already carry a mission
	// record.
	RejectAlreadyProcessed Decision = "already-processed"
	// RejectAlreadyTranslation rejects items that are themselves language
	// variants of another item.
	RejectAlreadyTranslation Decision = "already-a-translation"
	// RejectQuotaExhausted rejects items once the committed daily count has
	// reached the maximum.
	RejectQuotaExhausted Decision = "quota-exhausted"
)

// Request carries the inbound item plus the caller-authenticity signal
// computed by the request layer. The gate only consumes the signal, it
// never inspects transport headers itself.
type Request struct {
	ItemID     string
	Authentic  bool
	CallerHash string
}

// Outcome reports what admission did. Status is set only when the decision
// is Accept: scheduled on the happy path, schedule-failed or quota-exceeded
// when the post-acceptance steps terminated the mission.
type Outcome struct {
	Decision Decision
	Status   mission.Status
}

// Scheduler is the slice of the job scheduler admission needs.
type Scheduler interface {
	ScheduleOnce(itemID string, notBefore time.Time) (string, error)
	Cancel(handle string)
}

// Gate is the admission gate.
type Gate struct {
	items   content.Store
	records *mission.Records
	ledger  *quota.Ledger
	sched   Scheduler
	log     *mlog.Log
	delay   time.Duration
	now     func() time.Time
}

// NewGate builds a gate placing accepted jobs delay after admission.
func NewGate(items content.Store, records *mission.Records, ledger *quota.Ledger,
	sched Scheduler, log *mlog.Log, delay time.Duration) *Gate {
	return &Gate{
		items:   items,
		records: records,
		ledger:  ledger,
		sched:   sched,
		log:     log,
		delay:   delay,
		now:     time.Now,
	}
}

// SetNow overrides the clock. Test use only.
func (g *Gate) SetNow(now func() time.Time) {
	g.now = now
}

// Admit runs the full admission flow for one inbound item.
func (g *Gate) Admit(ctx context.Context, req Request) (Outcome, error) {
	item, err := g.items.Item(ctx, req.ItemID)
	if err != nil {
		return Outcome{}, err
	}

	if item.Kind != "post" {
		return g.reject(RejectNotEligibleType, "Item %s has ineligible kind %q", item.ID, item.Kind)
	}
	if !req.Authentic {
		return g.reject(RejectUnauthenticatedCaller, "Unauthenticated caller for item %s", item.ID)
	}
	under, err := g.ledger.UnderLimit(ctx, g.ledger.Today())
	if err != nil {
		return Outcome{}, err
	}
	if !under {
		return g.reject(RejectQuotaExhausted, "Daily limit reached for item %s", item.ID)
	}
	status, err := g.records.Status(ctx, item.ID)
	if err != nil {
		return Outcome{}, err
	}
	if status != "" {
		return g.reject(RejectAlreadyProcessed, "Item %s already processed: %s", item.ID, status)
	}
	if item.IsTranslation() {
		return g.reject(RejectAlreadyTranslation, "Item %s is already a translation", item.ID)
	}

	return g.accept(ctx, item, req.CallerHash)
}

func (g *Gate) reject(d Decision, format string, args ...interface{}) (Outcome, error) {
	cat := mlog.CatSkip
	switch d {
	case RejectQuotaExhausted:
		cat = mlog.CatAbort
	case RejectUnauthenticatedCaller, RejectNotEligibleType:
		cat = mlog.CatWarn
	}
	_ = g.log.Writef(cat, format, args...)
	return Outcome{Decision: d}, nil
}

// accept creates the mission record, places the delayed job and reserves
// quota, reconciling its own reservation afterwards.
func (g *Gate) accept(ctx context.Context, item *content.Item, callerHash string) (Outcome, error) {
	snap := mission.Snapshot{
		Title:          item.Title,
		SourceLanguage: item.Language,
		AdmittedAt:     g.now(),
		CallerHash:     callerHash,
	}
	if err := g.records.SetSnapshot(ctx, item.ID, snap); err != nil {
		return Outcome{}, err
	}
	if err := g.records.SetStatus(ctx, item.ID, mission.StatusScheduling); err != nil {
		return Outcome{}, err
	}

	handle, err := g.sched.ScheduleOnce(item.ID, g.now().Add(g.delay))
	if err != nil {
		_ = g.log.Writef(mlog.CatError, "Failed to schedule item %s: %v", item.ID, err)
		if serr := g.records.SetStatus(ctx, item.ID, mission.StatusScheduleFailed); serr != nil {
			return Outcome{}, serr
		}
		return Outcome{Decision: Accept, Status: mission.StatusScheduleFailed}, nil
	}
	if err := g.records.SetStatus(ctx, item.ID, mission.StatusScheduled); err != nil {
		return Outcome{}, err
	}
	_ = g.log.Writef(mlog.CatScheduled, "Item %s scheduled for duplication", item.ID)

	date := g.ledger.Today()
	if err := g.ledger.Reserve(ctx, date); err != nil {
		// Reservation failure: the counter was never incremented, so the
		// rollback is just unscheduling.
		g.sched.Cancel(handle)
		if serr := g.records.SetStatus(ctx, item.ID, mission.StatusQuotaExceeded); serr != nil {
			return Outcome{}, serr
		}
		_ = g.log.Writef(mlog.CatAbort, "Quota reservation failed - job unscheduled for item %s", item.ID)
		return Outcome{Decision: Accept, Status: mission.StatusQuotaExceeded}, nil
	}

	overrun, err := g.ledger.Reconcile(ctx, date)
	if err != nil {
		return Outcome{}, err
	}
	if overrun {
		// Race: two reservations both observed "under limit" before either
		// committed. This caller observed the overrun on its own
		// reservation, so it compensates: decrement, unschedule, terminal.
		if derr := g.ledger.Decrement(ctx, date); derr != nil {
			return Outcome{}, derr
		}
		g.sched.Cancel(handle)
		if serr := g.records.SetStatus(ctx, item.ID, mission.StatusQuotaExceeded); serr != nil {
			return Outcome{}, serr
		}
		_ = g.log.Writef(mlog.CatAbort, "Quota overrun detected - job unscheduled for item %s", item.ID)
		return Outcome{Decision: Accept, Status: mission.StatusQuotaExceeded}, nil
	}

	return Outcome{Decision: Accept, Status: mission.StatusScheduled}, nil
}

// HashCaller derives the caller-identity hash stored in snapshots. The raw
// address never lands on disk. Returns "unknown" for an empty address,
// mirroring callers behind opaque proxies.
func HashCaller(salt, addr string) string {
	if addr == "" {
		return "unknown"
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil))
}
