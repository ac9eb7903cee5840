package scheduler

import "time"

// Event is a pending job in the scheduler heap. It is an in-memory only
// type -- pending missions are rebuilt from their mission records on daemon
// restart.
type Event struct {
	// Handle uniquely identifies this scheduled job for cancellation.
	Handle string
	// ItemID is the content item the trigger callback receives when
	// TriggerAt is reached. Empty for recurring maintenance entries.
	ItemID string
	// TriggerAt is the wall-clock time the job fires at or after.
	TriggerAt time.Time
	// CronExpr is the cron expression for recurring entries.
	// Empty string means one-shot -- no re-scheduling after firing.
	CronExpr string
	// Name identifies which recurring callback the entry fires.
	Name string
}
