package model

import "time"

// DefaultMaxCheckAttempts caps how many times a delayed-metrics fetch is
// retried before the check is dropped.
const DefaultMaxCheckAttempts = 3

// PendingCheck tracks an outcome that is waiting for delayed external
// metrics. Keyed by outcome ID, at most one check per outcome. The check
// is removed on a successful fetch, or silently dropped (with a log line)
// once attempts are exhausted.
type PendingCheck struct {
	OutcomeID   string    `json:"outcome_id"`
	ExternalRef string    `json:"external_ref"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DaysToWait  int       `json:"days_to_wait"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// Ready reports whether enough days have elapsed for the check to run.
func (p PendingCheck) Ready(now time.Time) bool {
	return now.Sub(p.ScheduledAt) >= time.Duration(p.DaysToWait)*24*time.Hour
}
