// Package scheduler provides delayed job scheduling for the mission daemon.
// It implements a single-goroutine scheduler using a min-heap of Events
// sorted by trigger time, with a 60-second max-sleep-cap to handle NTP
// steps, DST transitions, and system sleep.
//
// One-shot events fire the registered OnTrigger callback with the item id;
// recurring entries (cron expression) fire their own named callback and are
// re-added automatically. Delivery is at-least-once: a fired callback that
// crashes the process is re-driven after restart by rebuilding pending
// missions from their records, so callbacks must be idempotent.
package scheduler
