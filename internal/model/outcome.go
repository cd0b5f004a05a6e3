// Package model defines the core entities of the lesson effectiveness
// feedback engine: generation outcomes, lessons and their running
// effectiveness statistics, pending delayed-metric checks, query patterns,
// and improvement-cycle records.
package model

import (
	"strings"
	"time"
)

// GenerationContext is the input context of a single generation run.
type GenerationContext struct {
	Topic          string  `json:"topic"`
	TargetMinutes  float64 `json:"target_minutes"`
	Mode           string  `json:"mode"`
	DesiredOutcome string  `json:"desired_outcome"`
}

// Key returns the normalized context fingerprint used to track where a
// lesson performs best or worst: lowercased topic and desired outcome
// with whitespace collapsed to single spaces.
func (c GenerationContext) Key() string {
	return NormalizeText(c.Topic + " " + c.DesiredOutcome)
}

// NormalizeText lowercases s and collapses runs of whitespace to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ImmediateMetrics are measured at generation time, set exactly once when
// the outcome is recorded.
type ImmediateMetrics struct {
	GenerationSuccess    bool    `json:"generation_success"`
	QualityScore         float64 `json:"quality_score"` // 0-100
	DurationDeviationPct float64 `json:"duration_deviation_pct"`
}

// DelayedMetrics are external engagement measurements that become available
// only after a waiting period. Set exactly once by the delayed-metrics path.
type DelayedMetrics struct {
	Views          int       `json:"views"`
	RetentionPct   float64   `json:"retention_pct"`
	EngagementRate float64   `json:"engagement_rate"`
	Likes          int       `json:"likes"`
	Comments       int       `json:"comments"`
	Sentiment      string    `json:"sentiment"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Outcome is the measured result of one generation run.
// Outcomes are upserted by ID, never duplicated.
type Outcome struct {
	ID             string            `json:"id"`
	Subject        string            `json:"subject"`
	CreatedAt      time.Time         `json:"created_at"`
	AppliedLessons []string          `json:"applied_lessons,omitempty"`
	Context        GenerationContext `json:"context"`
	Immediate      ImmediateMetrics  `json:"immediate"`
	Delayed        *DelayedMetrics   `json:"delayed,omitempty"`

	// MetricsComplete is true once delayed metrics have been applied.
	MetricsComplete bool `json:"metrics_complete"`
	// DelayedPending is true while a pending check is scheduled.
	DelayedPending bool `json:"delayed_pending"`

	// ExternalRef is the published content ID on the external platform,
	// empty when the run was not published.
	ExternalRef string `json:"external_ref,omitempty"`
}
