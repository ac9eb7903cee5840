package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type triggerRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *triggerRecorder) record(itemID string) {
	r.mu.Lock()
	r.fired = append(r.fired, itemID)
	r.mu.Unlock()
}

func (r *triggerRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestScheduleOnceFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &triggerRecorder{}
	s := New(ctx, rec.record)

	if _, err := s.ScheduleOnce("item-1", time.Now().Add(100*time.Millisecond)); err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	fired := rec.snapshot()
	if len(fired) != 1 || fired[0] != "item-1" {
		t.Fatalf("fired = %v, want [item-1]", fired)
	}
}

func TestScheduleOnceFiresInTimeOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &triggerRecorder{}
	s := New(ctx, rec.record)

	now := time.Now()
	if _, err := s.ScheduleOnce("late", now.Add(200*time.Millisecond)); err != nil {
		t.Fatalf("ScheduleOnce late: %v", err)
	}
	if _, err := s.ScheduleOnce("early", now.Add(50*time.Millisecond)); err != nil {
		t.Fatalf("ScheduleOnce early: %v", err)
	}
	time.Sleep(400 * time.Millisecond)

	fired := rec.snapshot()
	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("fired = %v, want [early late]", fired)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &triggerRecorder{}
	s := New(ctx, rec.record)

	handle, err := s.ScheduleOnce("item-1", time.Now().Add(150*time.Millisecond))
	if err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}
	s.Cancel(handle)
	time.Sleep(300 * time.Millisecond)

	if fired := rec.snapshot(); len(fired) != 0 {
		t.Fatalf("cancelled event fired: %v", fired)
	}
}

func TestCancelUnknownHandleIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, func(string) {})
	s.Cancel("no-such-handle")
}

func TestPastDueFiresImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &triggerRecorder{}
	s := New(ctx, rec.record)

	if _, err := s.ScheduleOnce("item-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if fired := rec.snapshot(); len(fired) != 1 {
		t.Fatalf("past-due event did not fire: %v", fired)
	}
}

func TestScheduleRecurringFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, func(string) {})

	var mu sync.Mutex
	count := 0
	// Every-minute cron; the first tick is up to a minute away, so this
	// only asserts registration and the next-tick computation.
	if err := s.ScheduleRecurring("sweep", "* * * * *", func() {
		mu.Lock()
		count++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("ScheduleRecurring: %v", err)
	}
}

func TestScheduleRecurringRejectsBadCron(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, func(string) {})
	if err := s.ScheduleRecurring("bad", "not a cron", func() {}); err == nil {
		t.Fatal("bad cron expression accepted")
	}
}

func TestStoppedSchedulerRejectsWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(ctx, func(string) {})
	// The run goroutine may not have observed cancellation yet; the add
	// channel is buffered, so only the done branch is deterministic after
	// the buffer fills. Scheduling against a long-cancelled context must
	// eventually return ErrStopped.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.ScheduleOnce("item-1", time.Now()); err == ErrStopped {
			return
		}
	}
	t.Fatal("ScheduleOnce never returned ErrStopped")
}
