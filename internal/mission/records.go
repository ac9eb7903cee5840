package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onwardseo/missiond/internal/content"
)

// Meta field names under which mission state is attached to content items.
const (
	MetaStatus      = "mission.status"
	MetaSnapshot    = "mission.snapshot"
	MetaResults     = "mission.results"
	MetaError       = "mission.error"
	MetaCompletedAt = "mission.completed_at"
)

// Records reads and writes mission records as item metadata. Records are
// mutated only by the admission gate, the executor and the health monitor.
type Records struct {
	store content.Store
}

// NewRecords wraps the content store.
func NewRecords(store content.Store) *Records {
	return &Records{store: store}
}

// Status returns the mission status of an item, or "" when no mission
// record exists.
func (r *Records) Status(ctx context.Context, itemID string) (Status, error) {
	v, ok, err := r.store.Meta(ctx, itemID, MetaStatus)
	if err != nil || !ok {
		return "", err
	}
	return Status(v), nil
}

// SetStatus transitions the mission status.
func (r *Records) SetStatus(ctx context.Context, itemID string, s Status) error {
	return r.store.SetMeta(ctx, itemID, MetaStatus, string(s))
}

// SetSnapshot stores the admission-time snapshot. Written once at
// admission, never updated.
func (r *Records) SetSnapshot(ctx context.Context, itemID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return r.store.SetMeta(ctx, itemID, MetaSnapshot, string(data))
}

// Snapshot loads the admission-time snapshot.
func (r *Records) Snapshot(ctx context.Context, itemID string) (Snapshot, bool, error) {
	var snap Snapshot
	v, ok, err := r.store.Meta(ctx, itemID, MetaSnapshot)
	if err != nil || !ok {
		return snap, false, err
	}
	if err := json.Unmarshal([]byte(v), &snap); err != nil {
		return snap, false, fmt.Errorf("decode snapshot for %s: %w", itemID, err)
	}
	return snap, true, nil
}

// SetResults persists the ordered per-language results.
func (r *Records) SetResults(ctx context.Context, itemID string, results []Result) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return r.store.SetMeta(ctx, itemID, MetaResults, string(data))
}

// Results loads the ordered per-language results.
func (r *Records) Results(ctx context.Context, itemID string) ([]Result, error) {
	v, ok, err := r.store.Meta(ctx, itemID, MetaResults)
	if err != nil || !ok {
		return nil, err
	}
	var results []Result
	if err := json.Unmarshal([]byte(v), &results); err != nil {
		return nil, fmt.Errorf("decode results for %s: %w", itemID, err)
	}
	return results, nil
}

// SetError records the last failure message.
func (r *Records) SetError(ctx context.Context, itemID, message string) error {
	return r.store.SetMeta(ctx, itemID, MetaError, message)
}

// SetCompletedAt stamps terminal completion time.
func (r *Records) SetCompletedAt(ctx context.Context, itemID string, t time.Time) error {
	return r.store.SetMeta(ctx, itemID, MetaCompletedAt, t.UTC().Format(time.RFC3339))
}

// Load assembles the full record for an item. Returns (nil, nil) when the
// item has no mission record.
func (r *Records) Load(ctx context.Context, itemID string) (*Record, error) {
	status, err := r.Status(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return nil, nil
	}
	rec := &Record{ItemID: itemID, Status: status}
	if snap, ok, err := r.Snapshot(ctx, itemID); err != nil {
		return nil, err
	} else if ok {
		rec.Snapshot = snap
	}
	if rec.Results, err = r.Results(ctx, itemID); err != nil {
		return nil, err
	}
	if v, ok, err := r.store.Meta(ctx, itemID, MetaError); err != nil {
		return nil, err
	} else if ok {
		rec.Error = v
	}
	if v, ok, err := r.store.Meta(ctx, itemID, MetaCompletedAt); err != nil {
		return nil, err
	} else if ok {
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			rec.CompletedAt = t
		}
	}
	return rec, nil
}

// WithStatus returns ids of items whose mission status equals s.
func (r *Records) WithStatus(ctx context.Context, s Status) ([]string, error) {
	return r.store.ItemsWithMeta(ctx, MetaStatus, string(s))
}

// Scrub removes mission metadata from an item. Applied to freshly created
// duplicates so copied metadata does not make them look processed.
func (r *Records) Scrub(ctx context.Context, itemID string) error {
	for _, name := range []string{MetaStatus, MetaSnapshot, MetaResults, MetaError, MetaCompletedAt} {
		if err := r.store.DeleteMeta(ctx, itemID, name); err != nil {
			return err
		}
	}
	return nil
}
