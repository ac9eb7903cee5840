// Package breaker implements the single global execution lock. At most one
// mission execution runs system-wide at any instant; the lock carries an
// owner tag and a hard timeout after which a holder is treated as abandoned
// and reclaimable. It is persisted, so a crash mid-execution wedges the
// system for at most the timeout, never forever.
package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onwardseo/missiond/internal/store"
)

const singletonName = "circuit_breaker"

// ErrBusy is returned by Acquire when a live holder exists.
var ErrBusy = errors.New("breaker: busy")

// State is the persisted holder record.
type State struct {
	Owner      string        `json:"owner"`
	AcquiredAt time.Time     `json:"acquired_at"`
	Timeout    time.Duration `json:"timeout"`
}

// Breaker is the global execution lock.
type Breaker struct {
	store   *store.Store
	timeout time.Duration
	now     func() time.Time
}

// New builds a breaker with the given hard timeout. The timeout must be at
// least twice the worst-case execution time; config enforces the floor.
func New(s *store.Store, timeout time.Duration) *Breaker {
	return &Breaker{store: s, timeout: timeout, now: time.Now}
}

// SetNow overrides the clock. Test use only.
func (b *Breaker) SetNow(now func() time.Time) {
	b.now = now
}

// Acquire takes the lock for itemID. It succeeds only when no live holder
// exists; an expired holder is reclaimed first. Returns ErrBusy when held.
func (b *Breaker) Acquire(ctx context.Context, itemID string) error {
	state := State{Owner: itemID, AcquiredAt: b.now(), Timeout: b.timeout}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("breaker: encode state: %w", err)
	}
	err = b.store.AcquireSingleton(ctx, singletonName, string(data), b.timeout)
	if errors.Is(err, store.ErrHeld) {
		return ErrBusy
	}
	return err
}

// Release unconditionally clears the holder. It must run on every exit path
// of the executor; a held-forever breaker deadlocks the whole system for
// its timeout duration.
func (b *Breaker) Release(ctx context.Context) error {
	return b.store.DeleteSingleton(ctx, singletonName)
}

// Holder returns the live holder state, if any. Expired holders read as
// absent.
func (b *Breaker) Holder(ctx context.Context) (*State, error) {
	value, ok, err := b.store.GetSingleton(ctx, singletonName)
	if err != nil || !ok {
		return nil, err
	}
	var state State
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return nil, fmt.Errorf("breaker: decode state: %w", err)
	}
	return &state, nil
}
