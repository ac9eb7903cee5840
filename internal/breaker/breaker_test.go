package breaker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/onwardseo/missiond/internal/store"
)

func newTestBreaker(t *testing.T, timeout time.Duration) (*Breaker, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, timeout), s
}

func TestMutualExclusion(t *testing.T) {
	b, _ := newTestBreaker(t, 15*time.Minute)
	ctx := context.Background()

	if err := b.Acquire(ctx, "item-1"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := b.Acquire(ctx, "item-2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire = %v, want ErrBusy", err)
	}

	state, err := b.Holder(ctx)
	if err != nil || state == nil {
		t.Fatalf("Holder = %v, %v", state, err)
	}
	if state.Owner != "item-1" {
		t.Fatalf("owner = %q, want item-1", state.Owner)
	}

	if err := b.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := b.Acquire(ctx, "item-2"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestExpiredHolderReclaimed(t *testing.T) {
	b, s := newTestBreaker(t, 15*time.Minute)
	ctx := context.Background()

	now := time.Now()
	clock := func() time.Time { return now }
	b.SetNow(clock)
	s.SetNow(clock)

	if err := b.Acquire(ctx, "crashed"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Before the timeout the holder is live.
	now = now.Add(10 * time.Minute)
	if err := b.Acquire(ctx, "next"); !errors.Is(err, ErrBusy) {
		t.Fatalf("Acquire before timeout = %v, want ErrBusy", err)
	}

	// Past the timeout the abandoned holder is reclaimed.
	now = now.Add(10 * time.Minute)
	if err := b.Acquire(ctx, "next"); err != nil {
		t.Fatalf("Acquire after timeout: %v", err)
	}
	state, _ := b.Holder(ctx)
	if state == nil || state.Owner != "next" {
		t.Fatalf("holder after reclaim = %+v", state)
	}
}

func TestReleaseWithoutHolder(t *testing.T) {
	b, _ := newTestBreaker(t, 15*time.Minute)
	if err := b.Release(context.Background()); err != nil {
		t.Fatalf("Release on free breaker: %v", err)
	}
}
