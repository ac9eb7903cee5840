package health

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onwardseo/missiond/internal/content"
	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
	"github.com/onwardseo/missiond/internal/retry"
	"github.com/onwardseo/missiond/internal/store"
)

type fakeSched struct {
	scheduled []string
}

func (f *fakeSched) ScheduleOnce(itemID string, notBefore time.Time) (string, error) {
	f.scheduled = append(f.scheduled, itemID)
	return "handle", nil
}

type harness struct {
	monitor *Monitor
	records *mission.Records
	policy  *retry.Policy
	ledger  *quota.Ledger
	store   *store.Store
	log     *mlog.Log
}

func newHarness(t *testing.T) *harness {
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

	records := mission.NewRecords(content.NewSQLite(s.DB()))
	ledger := quota.NewLedger(s, 50, ml)
	policy := retry.NewPolicy(s, &fakeSched{}, ml, 3, 5*time.Minute, time.Hour)
	return &harness{
		monitor: NewMonitor(records, policy, ledger, ml, 2*time.Hour),
		records: records,
		policy:  policy,
		ledger:  ledger,
		store:   s,
		log:     ml,
	}
}

func (h *harness) admit(t *testing.T, itemID string, at time.Time, status mission.Status) {
	t.Helper()
	ctx := context.Background()
	if err := h.records.SetSnapshot(ctx, itemID, mission.Snapshot{AdmittedAt: at}); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}
	if err := h.records.SetStatus(ctx, itemID, status); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
}

func TestSweepTimesOutStuckMissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	h.monitor.SetNow(func() time.Time { return now })

	h.admit(t, "stuck", now.Add(-3*time.Hour), mission.StatusScheduled)
	h.admit(t, "fresh", now.Add(-30*time.Minute), mission.StatusScheduled)
	h.admit(t, "done", now.Add(-5*time.Hour), mission.StatusCompleted)

	h.monitor.Sweep(ctx)

	if st, _ := h.records.Status(ctx, "stuck"); st != mission.StatusTimeout {
		t.Fatalf("stuck status = %s, want %s", st, mission.StatusTimeout)
	}
	if st, _ := h.records.Status(ctx, "fresh"); st != mission.StatusScheduled {
		t.Fatalf("fresh status = %s, want %s", st, mission.StatusScheduled)
	}
	if st, _ := h.records.Status(ctx, "done"); st != mission.StatusCompleted {
		t.Fatalf("done status = %s, want %s", st, mission.StatusCompleted)
	}
	rec, _ := h.records.Load(ctx, "stuck")
	if rec.CompletedAt.IsZero() {
		t.Fatal("timed-out mission missing completed_at")
	}
}

func TestSweepSkipsRecordsWithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.records.SetStatus(ctx, "bare", mission.StatusScheduled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	h.monitor.Sweep(ctx)
	if st, _ := h.records.Status(ctx, "bare"); st != mission.StatusScheduled {
		t.Fatalf("bare status = %s", st)
	}
}

func TestSweepResetsDecayedFailureCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Now()
	clock := func() time.Time { return now }
	h.policy.SetNow(clock)
	h.store.SetNow(clock)
	h.monitor.SetNow(clock)

	if _, err := h.policy.OnFailure(ctx, "item-1"); err != nil {
		t.Fatalf("OnFailure: %v", err)
	}

	// Inside the quiet window nothing happens.
	h.monitor.Sweep(ctx)
	if last, _ := h.policy.LastFailure(ctx); last.IsZero() {
		t.Fatal("failure history cleared too early")
	}

	now = now.Add(2 * time.Hour)
	h.monitor.Sweep(ctx)
	if n, _ := h.policy.FailureCount(ctx); n != 0 {
		t.Fatalf("failure count after decay sweep = %d", n)
	}
	if last, _ := h.policy.LastFailure(ctx); !last.IsZero() {
		t.Fatalf("last failure survived decay sweep: %v", last)
	}
}

func TestSweepPrunesStaleQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	h.ledger.SetNow(func() time.Time { return now })
	h.monitor.SetNow(func() time.Time { return now })

	stale := now.AddDate(0, 0, -4).Format(quota.DateLayout)
	if err := h.ledger.Reserve(ctx, stale); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	h.monitor.Sweep(ctx)
	if n, _ := h.ledger.Count(ctx, stale); n != 0 {
		t.Fatalf("stale counter survived sweep: %d", n)
	}
}

func TestRecoverPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	h.monitor.SetNow(func() time.Time { return now })

	h.admit(t, "a", now.Add(-time.Minute), mission.StatusScheduled)
	h.admit(t, "b", now.Add(-time.Minute), mission.StatusScheduling)
	h.admit(t, "c", now.Add(-time.Minute), mission.StatusCompleted)

	sched := &fakeSched{}
	n, err := h.monitor.RecoverPending(ctx, sched, 45*time.Second)
	if err != nil {
		t.Fatalf("RecoverPending: %v", err)
	}
	if n != 2 {
		t.Fatalf("recovered %d, want 2", n)
	}
	if len(sched.scheduled) != 2 {
		t.Fatalf("scheduled = %v", sched.scheduled)
	}
	// Interrupted scheduling advances to scheduled once re-enqueued.
	if st, _ := h.records.Status(ctx, "b"); st != mission.StatusScheduled {
		t.Fatalf("recovered scheduling status = %s", st)
	}
}
