// Package mission defines the mission record model shared by the admission
// gate, the executor and the health monitor. A mission is the unit of work
// that fans a single content item out into its missing language variants.
package mission

import "time"

// Status is the lifecycle state of a mission. Transitions are driven only by
// the admission gate (scheduling/scheduled/schedule-failed/quota-exceeded),
// the executor and the health monitor.
type Status string

const (
	// StatusScheduling is set at admission, before the delayed job is placed.
	StatusScheduling Status = "scheduling"
	// StatusScheduled means the scheduler accepted the delayed job.
	StatusScheduled Status = "scheduled"
	// StatusScheduleFailed means the scheduler rejected the job. Terminal,
	// no retry.
	StatusScheduleFailed Status = "schedule-failed"
	// StatusQuotaExceeded means a quota race overrun was detected and this
	// mission was the one rolled back. Terminal.
	StatusQuotaExceeded Status = "quota-exceeded"
	// StatusAlreadyComplete means every target language already had a
	// translation when execution ran. Terminal.
	StatusAlreadyComplete Status = "already-complete"
	// StatusCompleted means the duplication loop finished. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means execution failed and the retry budget is spent.
	// Terminal.
	StatusFailed Status = "failed"
	// StatusTimeout is set by the health monitor on missions stuck in
	// scheduled past the staleness window. Terminal.
	StatusTimeout Status = "timeout"
)

// Terminal reports whether s ends the mission. The executor treats a
// re-invocation on a terminal mission as a no-op.
func (s Status) Terminal() bool {
	switch s {
	case StatusScheduleFailed, StatusQuotaExceeded, StatusAlreadyComplete,
		StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// Snapshot captures item state at admission time. It is immutable once
// written.
type Snapshot struct {
	Title          string    `json:"title"`
	SourceLanguage string    `json:"source_language"`
	AdmittedAt     time.Time `json:"admitted_at"`
	CallerHash     string    `json:"caller_hash"`
}

// Result is one created language variant. Results keep insertion order,
// which is the processing order of the duplication loop.
type Result struct {
	Language string `json:"language"`
	ItemID   string `json:"item_id"`
}

// Record is the full mission state attached to a content item. Records are
// never deleted; they remain on the item as an audit trail.
type Record struct {
	ItemID      string
	Status      Status
	Snapshot    Snapshot
	Results     []Result
	Error       string
	CompletedAt time.Time
}
