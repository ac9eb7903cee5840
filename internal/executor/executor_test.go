package executor

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/onwardseo/missiond/internal/breaker"
	"github.com/onwardseo/missiond/internal/content"
	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
	"github.com/onwardseo/missiond/internal/retry"
	"github.com/onwardseo/missiond/internal/store"
)

var testTargets = []string{"en-gb", "en-ca", "en-au", "en-us", "en-nz"}

type fakeSched struct {
	scheduled []string
	at        []time.Time
}

func (f *fakeSched) ScheduleOnce(itemID string, notBefore time.Time) (string, error) {
	f.scheduled = append(f.scheduled, itemID)
	f.at = append(f.at, notBefore)
	return "handle", nil
}

type harness struct {
	exec    *Executor
	store   *store.Store
	items   *content.SQLite
	records *mission.Records
	brk     *breaker.Breaker
	ledger  *quota.Ledger
	sched   *fakeSched
}

func newHarness(t *testing.T, dup content.Duplicator) *harness {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ml, err := mlog.Open(t.TempDir(), mlog.Options{})
	if err != nil {
		t.Fatalf("mlog.Open: %v", err)
	}
	t.Cleanup(func() { ml.Close() })

	items := content.NewSQLite(s.DB())
	if dup == nil {
		dup = content.NewLocalDuplicator(items)
	}
	records := mission.NewRecords(items)
	ledger := quota.NewLedger(s, 50, ml)
	brk := breaker.New(s, 15*time.Minute)
	sched := &fakeSched{}
	policy := retry.NewPolicy(s, sched, ml, 3, 5*time.Minute, time.Hour)

	exec := New(Config{
		TargetLanguages:  testTargets,
		PacingDelay:      3 * time.Second,
		BusyDelay:        5 * time.Minute,
		MaxExecutionTime: 2 * time.Minute,
	}, items, records, dup, brk, ledger, policy, s, sched, ml)
	exec.SetSleep(func(time.Duration) {})

	return &harness{exec: exec, store: s, items: items, records: records,
		brk: brk, ledger: ledger, sched: sched}
}

func (h *harness) addItem(t *testing.T, it *content.Item) {
	t.Helper()
	if err := h.items.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
}

func (h *harness) mustStatus(t *testing.T, itemID string, want mission.Status) {
	t.Helper()
	got, err := h.records.Status(context.Background(), itemID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got != want {
		t.Fatalf("status = %s, want %s", got, want)
	}
}

func TestExecuteCreatesMissingVariants(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h.mustStatus(t, "42", mission.StatusCompleted)

	results, err := h.records.Results(ctx, "42")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	// Source language excluded: four variants out of five targets.
	if len(results) != 4 {
		t.Fatalf("created %d variants, want 4", len(results))
	}
	if results[0].Language != "en-ca" || results[3].Language != "en-nz" {
		t.Fatalf("result order = %+v", results)
	}
	tr, _ := h.items.Translations(ctx, "42")
	if len(tr) != 4 {
		t.Fatalf("translation index has %d entries, want 4", len(tr))
	}

	// The breaker must be free again.
	if holder, _ := h.brk.Holder(ctx); holder != nil {
		t.Fatalf("breaker still held by %+v", holder)
	}
}

func TestExecuteSkipsExistingVariants(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})
	h.addItem(t, &content.Item{ID: "43", Title: "Hello", Language: "en-ca", SourceOf: "42"})
	if err := h.items.AddTranslation(ctx, "42", "en-ca", "43"); err != nil {
		t.Fatalf("AddTranslation: %v", err)
	}

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	results, _ := h.records.Results(ctx, "42")
	if len(results) != 3 {
		t.Fatalf("created %d variants, want 3", len(results))
	}
	for _, r := range results {
		if r.Language == "en-ca" {
			t.Fatal("existing variant recreated")
		}
	}
}

func TestExecuteIdempotentOnTerminal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})
	if err := h.records.SetStatus(ctx, "42", mission.StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// At-least-once delivery may fire the job again; the re-entry must be
	// a logged no-op.
	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h.mustStatus(t, "42", mission.StatusCompleted)
	if tr, _ := h.items.Translations(ctx, "42"); len(tr) != 0 {
		t.Fatalf("re-entry created variants: %v", tr)
	}
}

func TestExecuteAlreadyComplete(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})
	for i, lang := range []string{"en-ca", "en-au", "en-us", "en-nz"} {
		tid := "tr-" + strconv.Itoa(i)
		h.addItem(t, &content.Item{ID: tid, Title: "Hello", Language: lang, SourceOf: "42"})
		if err := h.items.AddTranslation(ctx, "42", lang, tid); err != nil {
			t.Fatalf("AddTranslation: %v", err)
		}
	}

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h.mustStatus(t, "42", mission.StatusAlreadyComplete)
}

func TestExecuteBusyReenqueues(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})
	if err := h.records.SetStatus(ctx, "42", mission.StatusScheduled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := h.brk.Acquire(ctx, "other-item"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Busy is transient: the mission is re-enqueued, not failed.
	h.mustStatus(t, "42", mission.StatusScheduled)
	if len(h.sched.scheduled) != 1 || h.sched.scheduled[0] != "42" {
		t.Fatalf("re-enqueued = %v", h.sched.scheduled)
	}
	if holder, _ := h.brk.Holder(ctx); holder == nil || holder.Owner != "other-item" {
		t.Fatalf("holder = %+v", holder)
	}
}

func TestExecuteAbortFlag(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})
	if err := h.store.SetAbortFlag(ctx); err != nil {
		t.Fatalf("SetAbortFlag: %v", err)
	}

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// First failure is within the retry budget, so a retry is scheduled
	// and the mission remains scheduled.
	h.mustStatus(t, "42", mission.StatusScheduled)
	if len(h.sched.scheduled) != 1 {
		t.Fatalf("retries scheduled = %v", h.sched.scheduled)
	}
	rec, _ := h.records.Load(ctx, "42")
	if rec == nil || rec.Error == "" {
		t.Fatalf("abort error not recorded: %+v", rec)
	}
	if tr, _ := h.items.Translations(ctx, "42"); len(tr) != 0 {
		t.Fatalf("aborted mission created variants: %v", tr)
	}
	if holder, _ := h.brk.Holder(ctx); holder != nil {
		t.Fatalf("breaker still held after abort: %+v", holder)
	}
}

func TestExecuteFailureExhaustsBudget(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	// Item does not exist: execution fails hard. The counter is already at
	// the cap, so no retry is scheduled and failed is terminal.
	if err := h.store.SetSingleton(ctx, "failure_count", "3", time.Hour); err != nil {
		t.Fatalf("SetSingleton: %v", err)
	}
	if err := h.records.SetStatus(ctx, "42", mission.StatusScheduled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h.mustStatus(t, "42", mission.StatusFailed)
	if len(h.sched.scheduled) != 0 {
		t.Fatalf("retry scheduled past the budget: %v", h.sched.scheduled)
	}
	rec, _ := h.records.Load(ctx, "42")
	if rec.CompletedAt.IsZero() {
		t.Fatal("terminal failure missing completed_at")
	}
}

func TestExecuteFailureReturnsQuotaSlot(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	date := h.ledger.Today()
	if err := h.ledger.Reserve(ctx, date); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Missing item fails the execution; the reserved slot is returned.
	if err := h.exec.Execute(ctx, "missing"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, _ := h.ledger.Count(ctx, date); n != 0 {
		t.Fatalf("quota count = %d, want 0", n)
	}
}

func TestExecuteUnavailablePrimitive(t *testing.T) {
	h := newHarness(t, content.Unavailable{})
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Per-language skips are soft: the mission completes with no results.
	h.mustStatus(t, "42", mission.StatusCompleted)
	results, _ := h.records.Results(ctx, "42")
	if len(results) != 0 {
		t.Fatalf("results = %+v", results)
	}
}

func TestExecuteManualLanguageSubset(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})

	if err := h.exec.ExecuteManual(ctx, "42", []string{"en-ca"}); err != nil {
		t.Fatalf("ExecuteManual: %v", err)
	}
	h.mustStatus(t, "42", mission.StatusCompleted)
	results, _ := h.records.Results(ctx, "42")
	if len(results) != 1 || results[0].Language != "en-ca" {
		t.Fatalf("results = %+v", results)
	}
}

func TestExecutePacesBetweenCalls(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addItem(t, &content.Item{ID: "42", Title: "Hello", Language: "en-gb"})

	var sleeps []time.Duration
	h.exec.SetSleep(func(d time.Duration) { sleeps = append(sleeps, d) })

	if err := h.exec.Execute(ctx, "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Four languages processed: three pacing gaps, none before the first
	// or after the last call.
	if len(sleeps) != 3 {
		t.Fatalf("pacing sleeps = %d, want 3", len(sleeps))
	}
	for _, d := range sleeps {
		if d != 3*time.Second {
			t.Fatalf("pacing = %v, want 3s", d)
		}
	}
}
