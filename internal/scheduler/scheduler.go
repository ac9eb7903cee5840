package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

const maxSleepCap = 60 * time.Second

// ErrStopped is returned when scheduling against a scheduler whose context
// is done.
var ErrStopped = errors.New("scheduler: stopped")

// Scheduler manages scheduled jobs using a min-heap.
// It runs a background goroutine that sleeps until the next event's
// trigger time, then calls the onTrigger callback with the item id.
type Scheduler struct {
	addChan    chan Event
	removeChan chan string
	ctx        context.Context

	mu        sync.Mutex
	recurring map[string]func()
}

// New creates and starts a new Scheduler.
// The onTrigger callback is invoked when a one-shot event fires.
// The scheduler goroutine exits when ctx is cancelled.
func New(ctx context.Context, onTrigger func(itemID string)) *Scheduler {
	s := &Scheduler{
		addChan:    make(chan Event, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
		recurring:  make(map[string]func()),
	}
	go s.run(onTrigger)
	return s
}

// ScheduleOnce enqueues a one-shot job for itemID firing at or after
// notBefore and returns its cancellation handle.
func (s *Scheduler) ScheduleOnce(itemID string, notBefore time.Time) (string, error) {
	event := Event{
		Handle:    uuid.NewString(),
		ItemID:    itemID,
		TriggerAt: notBefore,
	}
	select {
	case s.addChan <- event:
		return event.Handle, nil
	case <-s.ctx.Done():
		return "", ErrStopped
	}
}

// Cancel removes a scheduled job by handle. Cancelling an already-fired or
// unknown handle is a no-op.
func (s *Scheduler) Cancel(handle string) {
	select {
	case s.removeChan <- handle:
	case <-s.ctx.Done():
	}
}

// ScheduleRecurring registers fn under name and fires it on every
// occurrence of the cron expression.
func (s *Scheduler) ScheduleRecurring(name, cronExpr string, fn func()) error {
	next, err := gronx.NextTickAfter(cronExpr, time.Now(), false)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.recurring[name] = fn
	s.mu.Unlock()

	event := Event{
		Handle:    "recurring:" + name,
		Name:      name,
		TriggerAt: next,
		CronExpr:  cronExpr,
	}
	select {
	case s.addChan <- event:
		return nil
	case <-s.ctx.Done():
		return ErrStopped
	}
}

// run is the core scheduler goroutine implementing the active-object
// pattern. It maintains a min-heap of events and sleeps with a 60s
// max-sleep-cap. Recurring events are re-added after firing with the next
// cron occurrence.
func (s *Scheduler) run(onTrigger func(string)) {
	h := &eventHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// No events -- block indefinitely on channels
			return nil
		}
		next := (*h)[0].TriggerAt
		dur := time.Until(next)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event := <-s.addChan:
			heapPush(h, event)
			timerCh = resetTimer()

		case handle := <-s.removeChan:
			heapRemoveByHandle(h, handle)
			timerCh = resetTimer()

		case <-timerCh:
			// Fire all events whose time has arrived
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].TriggerAt.After(now) {
				event := heapPop(h)
				if event.CronExpr != "" {
					s.fireRecurring(event.Name)
					next, err := gronx.NextTickAfter(event.CronExpr, time.Now(), false)
					if err == nil {
						heapPush(h, Event{
							Handle:    event.Handle,
							Name:      event.Name,
							TriggerAt: next,
							CronExpr:  event.CronExpr,
						})
					}
					continue
				}
				onTrigger(event.ItemID)
			}
			timerCh = resetTimer()
		}
	}
}

func (s *Scheduler) fireRecurring(name string) {
	s.mu.Lock()
	fn := s.recurring[name]
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
