package model

import "time"

// MaxContextEntries bounds the best/worst context lists on a lesson record.
const MaxContextEntries = 10

// LessonEffectiveness is the running statistical record for one lesson.
// Impact averages are exponential moving averages; quality variance is
// maintained with Welford's online algorithm (mean + M2 accumulator).
type LessonEffectiveness struct {
	LessonID        string  `json:"lesson_id"`
	TimesApplied    int     `json:"times_applied"`
	TimesSuccessful int     `json:"times_successful"`
	SuccessRate     float64 `json:"success_rate"`

	AvgQualityImpact    float64 `json:"avg_quality_impact"`
	AvgRetentionImpact  float64 `json:"avg_retention_impact"`
	AvgEngagementImpact float64 `json:"avg_engagement_impact"`

	// Welford accumulators over immediate quality scores.
	QualityMean float64 `json:"quality_mean"`
	QualityM2   float64 `json:"quality_m2"`

	FirstApplied   time.Time  `json:"first_applied"`
	LastApplied    time.Time  `json:"last_applied"`
	LastSuccessful *time.Time `json:"last_successful,omitempty"`

	// ContextScores maps a normalized context key to an EMA quality score.
	ContextScores map[string]float64 `json:"context_scores,omitempty"`
	BestContexts  []string           `json:"best_contexts,omitempty"`
	WorstContexts []string           `json:"worst_contexts,omitempty"`

	// Score is the stored composite effectiveness score (0-100), refreshed
	// during improvement cycles.
	Score float64 `json:"score"`
}

// QualityVariance returns the variance of observed quality scores.
// Zero until at least two applications exist.
func (e LessonEffectiveness) QualityVariance() float64 {
	if e.TimesApplied < 2 {
		return 0
	}
	return e.QualityM2 / float64(e.TimesApplied)
}
