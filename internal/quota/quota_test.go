package quota

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/store"
)

func newTestLedger(t *testing.T, max int) *Ledger {
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
	return NewLedger(s, max, ml)
}

func TestUnderLimit(t *testing.T) {
	l := newTestLedger(t, 2)
	ctx := context.Background()
	date := l.Today()

	under, err := l.UnderLimit(ctx, date)
	if err != nil || !under {
		t.Fatalf("fresh UnderLimit = %v, %v", under, err)
	}
	for i := 0; i < 2; i++ {
		if err := l.Reserve(ctx, date); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
	}
	under, err = l.UnderLimit(ctx, date)
	if err != nil || under {
		t.Fatalf("UnderLimit at max = %v, %v", under, err)
	}
}

func TestReserveAndReconcile(t *testing.T) {
	l := newTestLedger(t, 1)
	ctx := context.Background()
	date := l.Today()

	if err := l.Reserve(ctx, date); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	overrun, err := l.Reconcile(ctx, date)
	if err != nil || overrun {
		t.Fatalf("Reconcile within limit = %v, %v", overrun, err)
	}

	// A second reservation commits past the maximum; reconcile flags it.
	if err := l.Reserve(ctx, date); err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	overrun, err = l.Reconcile(ctx, date)
	if err != nil || !overrun {
		t.Fatalf("Reconcile past limit = %v, %v", overrun, err)
	}

	// Compensating rollback restores the committed count.
	if err := l.Decrement(ctx, date); err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if n, _ := l.Count(ctx, date); n != 1 {
		t.Fatalf("count after rollback = %d, want 1", n)
	}
}

func TestQuotaIsPerDay(t *testing.T) {
	l := newTestLedger(t, 1)
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	l.SetNow(func() time.Time { return day })

	if err := l.Reserve(ctx, l.Today()); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if under, _ := l.UnderLimit(ctx, l.Today()); under {
		t.Fatal("limit not reached on day one")
	}

	// Next calendar day gets a fresh counter.
	day = day.Add(2 * time.Hour)
	if under, _ := l.UnderLimit(ctx, l.Today()); !under {
		t.Fatal("limit carried over to the next day")
	}
}

func TestPrune(t *testing.T) {
	l := newTestLedger(t, 50)
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	l.SetNow(func() time.Time { return day })

	old := day.AddDate(0, 0, -3).Format(DateLayout)
	recent := day.AddDate(0, 0, -1).Format(DateLayout)
	if err := l.Reserve(ctx, old); err != nil {
		t.Fatalf("Reserve old: %v", err)
	}
	if err := l.Reserve(ctx, recent); err != nil {
		t.Fatalf("Reserve recent: %v", err)
	}

	if err := l.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n, _ := l.Count(ctx, old); n != 0 {
		t.Fatalf("stale counter survived prune: %d", n)
	}
	if n, _ := l.Count(ctx, recent); n != 1 {
		t.Fatalf("recent counter pruned: %d", n)
	}
}
