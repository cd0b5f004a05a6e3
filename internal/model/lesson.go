package model

import "time"

// ConfidenceTier classifies how much trust the engine places in a lesson.
// Tiers are written only by the improvement orchestrator, never on a
// per-update basis, so lessons don't thrash between tiers.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Demoted returns the tier one step below t. Demotion is staged: a lesson
// moves at most one tier per improvement cycle.
func (t ConfidenceTier) Demoted() ConfidenceTier {
	switch t {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Lesson is a recorded generation heuristic: a free-text finding and the
// action derived from it, grouped by category.
type Lesson struct {
	ID         string         `json:"id"`
	Category   string         `json:"category"`
	Finding    string         `json:"finding"`
	Action     string         `json:"action"`
	Confidence ConfidenceTier `json:"confidence"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Archived   bool           `json:"archived,omitempty"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
}
