// Package executor drives one mission through scheduling → execution →
// terminal status. It is the only component that advances a mission while
// holding the circuit breaker, which makes per-item status transitions
// totally ordered. All failures are caught at this boundary -- nothing
// propagates past a single mission's processing, and the breaker is
// released on every exit path.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onwardseo/missiond/internal/breaker"
	"github.com/onwardseo/missiond/internal/content"
	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
	"github.com/onwardseo/missiond/internal/retry"
	"github.com/onwardseo/missiond/internal/store"
)

// fallbackSourceLanguage stands in when the content store reports no source
// language for an item.
const fallbackSourceLanguage = "en-gb"

// errAborted marks a mission stopped by the global abort flag. Intentional,
// but treated as an execution failure for retry accounting.
var errAborted = errors.New("mission abort signal received")

// Scheduler is the slice of the job scheduler the executor needs for the
// breaker-busy re-enqueue.
type Scheduler interface {
	ScheduleOnce(itemID string, notBefore time.Time) (string, error)
}

// Config carries the execution knobs.
type Config struct {
	// TargetLanguages is the fan-out set in processing order.
	TargetLanguages []string
	// PacingDelay is slept between successive per-language calls to bound
	// the outbound call rate.
	PacingDelay time.Duration
	// BusyDelay is the re-enqueue delay when the breaker is held.
	BusyDelay time.Duration
	// MaxExecutionTime bounds one execution.
	MaxExecutionTime time.Duration
}

// Executor runs missions.
type Executor struct {
	cfg     Config
	items   content.Store
	records *mission.Records
	dup     content.Duplicator
	brk     *breaker.Breaker
	ledger  *quota.Ledger
	policy  *retry.Policy
	flags   *store.Store
	sched   Scheduler
	log     *mlog.Log
	sleep   func(time.Duration)
	now     func() time.Time
}

// New wires an executor.
func New(cfg Config, items content.Store, records *mission.Records, dup content.Duplicator,
	brk *breaker.Breaker, ledger *quota.Ledger, policy *retry.Policy,
	flags *store.Store, sched Scheduler, log *mlog.Log) *Executor {
	return &Executor{
		cfg:     cfg,
		items:   items,
		records: records,
		dup:     dup,
		brk:     brk,
		ledger:  ledger,
		policy:  policy,
		flags:   flags,
		sched:   sched,
		log:     log,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// SetSleep overrides the pacing sleep. Test use only.
func (e *Executor) SetSleep(sleep func(time.Duration)) {
	e.sleep = sleep
}

// Execute runs the mission for itemID against the configured target
// languages. This is the scheduler's trigger callback; it is safe to invoke
// repeatedly for the same item.
func (e *Executor) Execute(ctx context.Context, itemID string) error {
	return e.run(ctx, itemID, e.cfg.TargetLanguages)
}

// ExecuteManual runs the mission with an explicit language set. Used by the
// operator CLI path, which bypasses admission and quota but still goes
// through the full state machine.
func (e *Executor) ExecuteManual(ctx context.Context, itemID string, languages []string) error {
	if len(languages) == 0 {
		languages = e.cfg.TargetLanguages
	}
	return e.run(ctx, itemID, languages)
}

func (e *Executor) run(ctx context.Context, itemID string, targets []string) error {
	status, err := e.records.Status(ctx, itemID)
	if err != nil {
		return err
	}
	if status.Terminal() {
		// Idempotent re-entry: at-least-once delivery may fire twice.
		_ = e.log.Writef(mlog.CatSkip, "Item %s already processed: %s", itemID, status)
		return nil
	}

	if err := e.brk.Acquire(ctx, itemID); err != nil {
		if errors.Is(err, breaker.ErrBusy) {
			// Busy is transient, not a failure: re-enqueue instead of dropping.
			_ = e.log.Writef(mlog.CatAbort, "Circuit breaker active - item %s re-enqueued", itemID)
			_, serr := e.sched.ScheduleOnce(itemID, e.now().Add(e.cfg.BusyDelay))
			return serr
		}
		return err
	}

	execErr := e.duplicate(ctx, itemID, targets)
	if execErr != nil {
		return e.fail(ctx, itemID, execErr)
	}
	return nil
}

// duplicate performs the fan-out while holding the breaker. The breaker is
// released on every exit path, including a panic out of the loop.
func (e *Executor) duplicate(ctx context.Context, itemID string, targets []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("duplication panic for item %s: %v", itemID, r)
		}
		// Release must survive context cancellation.
		if rerr := e.brk.Release(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if e.cfg.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.MaxExecutionTime)
		defer cancel()
	}

	item, err := e.items.Item(ctx, itemID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return fmt.Errorf("item %s no longer exists", itemID)
		}
		return err
	}

	source := item.Language
	if source == "" {
		source = fallbackSourceLanguage
	}
	_ = e.log.Writef(mlog.CatExecute, "Starting duplication for item %s (lang: %s)", itemID, source)

	existing, err := e.items.Translations(ctx, itemID)
	if err != nil {
		return err
	}

	// Deterministic order: the configured list's order, minus the source
	// language and languages that already have a translation.
	languages := make([]string, 0, len(targets))
	for _, lang := range targets {
		if lang == source {
			continue
		}
		if _, ok := existing[lang]; ok {
			continue
		}
		languages = append(languages, lang)
	}

	if len(languages) == 0 {
		// Quota stays spent: it was reserved at admission and execution
		// truly ran.
		_ = e.log.Writef(mlog.CatInfo, "Item %s already has all translations", itemID)
		return e.records.SetStatus(ctx, itemID, mission.StatusAlreadyComplete)
	}

	var results []mission.Result
	for i, lang := range languages {
		aborted, ferr := e.flags.AbortFlag(ctx)
		if ferr != nil {
			return ferr
		}
		if aborted {
			return errAborted
		}
		if ctx.Err() != nil {
			return fmt.Errorf("execution time limit exceeded for item %s", itemID)
		}

		if !e.dup.Available() {
			_ = e.log.Writef(mlog.CatWarn,
				"Duplication for %s skipped - duplication primitive unavailable", lang)
			continue
		}

		newID, derr := e.dup.Duplicate(ctx, itemID, lang)
		switch {
		case derr != nil:
			// Soft per-language failure: logged, skipped, mission continues.
			_ = e.log.Writef(mlog.CatWarn, "Failed to create %s version: %v", lang, derr)
		case newID == "" || newID == itemID:
			_ = e.log.Writef(mlog.CatWarn, "Failed to create %s version: invalid id %q", lang, newID)
		default:
			// Scrub copied mission metadata so the duplicate never looks
			// processed.
			if serr := e.records.Scrub(ctx, newID); serr != nil {
				return serr
			}
			results = append(results, mission.Result{Language: lang, ItemID: newID})
			_ = e.log.Writef(mlog.CatSuccess, "Created %s version: ID %s", lang, newID)
		}

		if i < len(languages)-1 {
			e.sleep(e.cfg.PacingDelay)
		}
	}

	if err := e.records.SetResults(ctx, itemID, results); err != nil {
		return err
	}
	if err := e.records.SetCompletedAt(ctx, itemID, e.now()); err != nil {
		return err
	}
	if err := e.records.SetStatus(ctx, itemID, mission.StatusCompleted); err != nil {
		return err
	}
	_ = e.log.Writef(mlog.CatComplete, "Item %s: %d languages created", itemID, len(results))
	return nil
}

// fail applies the failure path: record the error, return the quota slot
// and consult the retry policy. When a retry is scheduled the mission
// remains effectively scheduled; otherwise failed is terminal.
func (e *Executor) fail(ctx context.Context, itemID string, execErr error) error {
	_ = e.log.Writef(mlog.CatCritical, "%v", execErr)
	if err := e.records.SetError(ctx, itemID, execErr.Error()); err != nil {
		return err
	}
	if err := e.ledger.Decrement(ctx, e.ledger.Today()); err != nil {
		return err
	}

	retried, err := e.policy.OnFailure(ctx, itemID)
	if err != nil {
		retried = false
	}
	if retried {
		return e.records.SetStatus(ctx, itemID, mission.StatusScheduled)
	}
	if err := e.records.SetCompletedAt(ctx, itemID, e.now()); err != nil {
		return err
	}
	return e.records.SetStatus(ctx, itemID, mission.StatusFailed)
}
