package model

import "time"

const (
	// MaxPatternSubjects bounds the recent-subject list on a query pattern.
	MaxPatternSubjects = 20
	// QuerySuccessQuality is the quality threshold above which a linked
	// outcome counts as a success for a query pattern.
	QuerySuccessQuality = 70.0
)

// QueryRecord is one executed knowledge-retrieval query.
type QueryRecord struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Hash         string    `json:"hash"`
	Subject      string    `json:"subject,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Purpose      string    `json:"purpose"`
	ResultCount  int       `json:"result_count"`
	TopRelevance float64   `json:"top_relevance"`
	ExecutionMs  int64     `json:"execution_ms"`
	CreatedAt    time.Time `json:"created_at"`

	// Back-filled when the generation run completes.
	OutcomeID    string   `json:"outcome_id,omitempty"`
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// QueryPattern aggregates effectiveness for a normalized query across runs.
// Keyed by the normalized-text hash. Exact match only, not semantic
// similarity.
type QueryPattern struct {
	Hash        string `json:"hash"`
	Query       string `json:"query"` // canonical text, first form seen
	ContentType string `json:"content_type,omitempty"`
	TimesUsed   int    `json:"times_used"`

	// Subjects is the bounded most-recent list of linked subject names.
	Subjects []string `json:"subjects,omitempty"`
	// SubjectQuality holds the quality score of each linked subject still
	// present in Subjects.
	SubjectQuality map[string]float64 `json:"subject_quality,omitempty"`

	AvgQuality      float64 `json:"avg_quality"`
	AvgTopRelevance float64 `json:"avg_top_relevance"`
	// SuccessRate is the fraction of linked subjects with quality >= 70.
	SuccessRate float64 `json:"success_rate"`

	BestTopics  []string  `json:"best_topics,omitempty"`
	WorstTopics []string  `json:"worst_topics,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CacheEntry is an admitted high-quality query, keyed by the same
// normalized-text hash as QueryPattern.
type CacheEntry struct {
	Hash       string    `json:"hash"`
	Query      string    `json:"query"`
	Quality    float64   `json:"quality"`
	UseCount   int       `json:"use_count"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}
