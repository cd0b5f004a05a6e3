package model

import "time"

// MaxCycleHistory bounds the improvement-cycle log.
const MaxCycleHistory = 100

// Cycle status values.
const (
	CycleStatusOK    = "ok"
	CycleStatusError = "error"
)

// LessonSuggestion is a candidate heuristic detected from high-quality
// outcomes. Suggestions are emitted for human review only; the engine
// never auto-creates a lesson.
type LessonSuggestion struct {
	Token       string   `json:"token"`
	Occurrences int      `json:"occurrences"`
	AvgQuality  float64  `json:"avg_quality"`
	Topics      []string `json:"topics,omitempty"`
}

// CycleRecord is the immutable log entry for one improvement cycle.
// A cycle that fails partway keeps whatever side effects were already
// committed and records status=error with a message.
type CycleRecord struct {
	ID           string     `json:"id"`
	Scope        string     `json:"scope"`
	LookbackDays int        `json:"lookback_days"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	OutcomesReviewed int `json:"outcomes_reviewed"`
	LessonsScored    int `json:"lessons_scored"`

	Promoted    []string           `json:"promoted,omitempty"`
	Demoted     []string           `json:"demoted,omitempty"`
	Archived    []string           `json:"archived,omitempty"`
	Suggestions []LessonSuggestion `json:"suggestions,omitempty"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Baseline holds the global baseline metrics that lesson impacts are
// measured against. Recomputed during improvement cycles once at least
// ten outcomes with delayed metrics exist.
type Baseline struct {
	Quality        float64   `json:"quality"`
	RetentionPct   float64   `json:"retention_pct"`
	EngagementRate float64   `json:"engagement_rate"`
	SampleCount    int       `json:"sample_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultBaseline is used until enough delayed-metric outcomes exist to
// compute a real one.
func DefaultBaseline() Baseline {
	return Baseline{
		Quality:        70,
		RetentionPct:   40,
		EngagementRate: 0.05,
	}
}
