// Package scoring computes and maintains lesson effectiveness scores.
//
// A lesson's score (0-100) is a weighted composite of six sub-scores
// derived from its running statistics:
//
//   - success rate x 100                                 weight .25
//   - quality impact   (+-10 pts from baseline -> +-50)  weight .20
//   - retention impact (+-25 pct points -> +-50)         weight .25
//   - engagement impact (+-0.05 rate -> +-50)            weight .15
//   - recency (exp decay, 60-day half-life)              weight .10
//   - consistency (100 - 0.5 x quality variance, >= 0)   weight .05
//
// Lessons applied fewer than three times score a fixed neutral 50.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel/metric"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/store"
	"github.com/randysalars/dreamweaving/internal/telemetry"
)

const (
	emaAlpha     = 0.3
	neutralScore = 50.0

	// minApplications is the sample floor below which a lesson is
	// considered untested and pinned to the neutral score.
	minApplications = 3

	recencyHalfLifeDays = 60.0

	weightSuccess     = 0.25
	weightQuality     = 0.20
	weightRetention   = 0.25
	weightEngagement  = 0.15
	weightRecency     = 0.10
	weightConsistency = 0.05

	// Context quality thresholds for the best/worst lists.
	bestContextQuality  = 75.0
	worstContextQuality = 50.0

	// Baseline recalculation requires this many delayed-metric outcomes.
	minBaselineSamples = 10
)

// Scorer computes effectiveness scores and performs the online statistical
// updates. It delegates all persistence to the store.
type Scorer struct {
	store     *store.Store
	ctxScorer ContextScorer
	logger    *slog.Logger

	updates metric.Int64Counter
}

// New creates a Scorer. ctxScorer may be nil; the default token-overlap
// scorer is used.
func New(st *store.Store, ctxScorer ContextScorer, logger *slog.Logger) *Scorer {
	if ctxScorer == nil {
		ctxScorer = OverlapScorer{}
	}
	meter := telemetry.Meter("dreamweaving/scoring")
	updates, _ := meter.Int64Counter("dreamweave.scoring.updates",
		metric.WithDescription("Lesson effectiveness updates applied"),
	)
	return &Scorer{
		store:     st,
		ctxScorer: ctxScorer,
		logger:    logger,
		updates:   updates,
	}
}

// Calculate returns the composite effectiveness score for a lesson.
// Missing or under-sampled records score the neutral 50.
func (s *Scorer) Calculate(ctx context.Context, lessonID string) (float64, error) {
	eff, err := s.store.Effectiveness(ctx, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return neutralScore, nil
		}
		return 0, fmt.Errorf("scoring: calculate %s: %w", lessonID, err)
	}
	return s.score(eff), nil
}

// score computes the composite from a record without touching the store.
func (s *Scorer) score(eff model.LessonEffectiveness) float64 {
	if eff.TimesApplied < minApplications {
		return neutralScore
	}

	successScore := eff.SuccessRate * 100

	// Impact sub-scores map a fixed deviation band onto +-50 around 50.
	qualityScore := clamp(50+eff.AvgQualityImpact*(50.0/10.0), 0, 100)
	retentionScore := clamp(50+eff.AvgRetentionImpact*(50.0/25.0), 0, 100)
	engagementScore := clamp(50+eff.AvgEngagementImpact*(50.0/0.05), 0, 100)

	days := s.store.Now().Sub(eff.LastApplied).Hours() / 24
	if days < 0 {
		days = 0
	}
	recencyScore := 100 * math.Pow(0.5, days/recencyHalfLifeDays)

	consistencyScore := math.Max(0, 100-0.5*eff.QualityVariance())

	composite := successScore*weightSuccess +
		qualityScore*weightQuality +
		retentionScore*weightRetention +
		engagementScore*weightEngagement +
		recencyScore*weightRecency +
		consistencyScore*weightConsistency

	return clamp(composite, 0, 100)
}

// Update folds one completed outcome into a lesson's running statistics:
// application and success counters, plain-ratio success rate, quality
// impact EMA, Welford variance accumulators, and (when a context key is
// supplied) the per-context score map and bounded best/worst lists.
func (s *Scorer) Update(ctx context.Context, lessonID string, outcome model.Outcome, contextKey string) error {
	eff, err := s.store.Effectiveness(ctx, lessonID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("scoring: update %s: %w", lessonID, err)
		}
		eff = model.LessonEffectiveness{LessonID: lessonID, FirstApplied: s.store.Now()}
	}

	now := s.store.Now()
	applied := outcome.CreatedAt
	if applied.IsZero() {
		applied = now
	}

	eff.TimesApplied++
	if outcome.Immediate.GenerationSuccess {
		eff.TimesSuccessful++
		eff.LastSuccessful = &applied
	}
	eff.SuccessRate = float64(eff.TimesSuccessful) / float64(eff.TimesApplied)
	eff.LastApplied = applied

	quality := outcome.Immediate.QualityScore

	// Welford's online update over raw quality scores.
	delta := quality - eff.QualityMean
	eff.QualityMean += delta / float64(eff.TimesApplied)
	eff.QualityM2 += delta * (quality - eff.QualityMean)

	baseline, err := s.store.Baseline(ctx)
	if err != nil {
		return fmt.Errorf("scoring: update %s: %w", lessonID, err)
	}
	impact := quality - baseline.Quality
	if eff.TimesApplied == 1 {
		eff.AvgQualityImpact = impact
	} else {
		eff.AvgQualityImpact = ema(eff.AvgQualityImpact, impact)
	}

	if contextKey != "" {
		key := model.NormalizeText(contextKey)
		if eff.ContextScores == nil {
			eff.ContextScores = map[string]float64{}
		}
		if prev, ok := eff.ContextScores[key]; ok {
			eff.ContextScores[key] = ema(prev, quality)
		} else {
			eff.ContextScores[key] = quality
		}
		if quality >= bestContextQuality {
			eff.BestContexts = appendBounded(eff.BestContexts, key, model.MaxContextEntries)
		} else if quality < worstContextQuality {
			eff.WorstContexts = appendBounded(eff.WorstContexts, key, model.MaxContextEntries)
		}
	}

	eff.Score = s.score(eff)

	if err := s.store.PutEffectiveness(ctx, eff); err != nil {
		return fmt.Errorf("scoring: update %s: %w", lessonID, err)
	}
	s.updates.Add(ctx, 1)
	return nil
}

// ApplyDelayedMetrics EMA-blends delayed engagement deltas into a lesson's
// stored impact averages once external metrics arrive.
func (s *Scorer) ApplyDelayedMetrics(ctx context.Context, lessonID string, retentionPct, engagementRate, baselineRetention, baselineEngagement float64) error {
	eff, err := s.store.Effectiveness(ctx, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("scoring: delayed metrics for untracked lesson, skipping", "lesson_id", lessonID)
			return nil
		}
		return fmt.Errorf("scoring: apply delayed metrics %s: %w", lessonID, err)
	}

	eff.AvgRetentionImpact = ema(eff.AvgRetentionImpact, retentionPct-baselineRetention)
	eff.AvgEngagementImpact = ema(eff.AvgEngagementImpact, engagementRate-baselineEngagement)
	eff.Score = s.score(eff)

	if err := s.store.PutEffectiveness(ctx, eff); err != nil {
		return fmt.Errorf("scoring: apply delayed metrics %s: %w", lessonID, err)
	}
	return nil
}

// RecalculateBaseline recomputes the global baseline from outcomes that
// have delayed metrics. No-op until at least ten such outcomes exist.
func (s *Scorer) RecalculateBaseline(ctx context.Context) error {
	outcomes, err := s.store.OutcomesWithDelayedMetrics(ctx)
	if err != nil {
		return fmt.Errorf("scoring: recalculate baseline: %w", err)
	}
	if len(outcomes) < minBaselineSamples {
		s.logger.Debug("scoring: too few delayed-metric outcomes for baseline",
			"have", len(outcomes), "need", minBaselineSamples)
		return nil
	}

	var quality, retention, engagement float64
	for _, o := range outcomes {
		quality += o.Immediate.QualityScore
		retention += o.Delayed.RetentionPct
		engagement += o.Delayed.EngagementRate
	}
	n := float64(len(outcomes))

	b := model.Baseline{
		Quality:        quality / n,
		RetentionPct:   retention / n,
		EngagementRate: engagement / n,
		SampleCount:    len(outcomes),
	}
	if err := s.store.PutBaseline(ctx, b); err != nil {
		return fmt.Errorf("scoring: recalculate baseline: %w", err)
	}
	s.logger.Info("scoring: baseline recalculated",
		"samples", b.SampleCount, "quality", b.Quality,
		"retention_pct", b.RetentionPct, "engagement_rate", b.EngagementRate)
	return nil
}

// RankedLesson pairs a lesson with its (possibly context-boosted) score.
type RankedLesson struct {
	Lesson       model.Lesson `json:"lesson"`
	Score        float64      `json:"score"`
	BaseScore    float64      `json:"base_score"`
	TimesApplied int          `json:"times_applied"`
}

// Ranked filters lessons by category, ranks them by their stored composite
// score (refreshed on every update and during improvement cycles, so lookups
// stay stable between cycles), applies the context boost, and returns the
// top entries sorted by descending score.
func (s *Scorer) Ranked(ctx context.Context, lessons []model.Lesson, category, contextKey string, limit int) ([]RankedLesson, error) {
	if limit <= 0 {
		limit = 10
	}
	records, err := s.store.AllEffectiveness(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoring: ranked lessons: %w", err)
	}

	key := model.NormalizeText(contextKey)
	out := make([]RankedLesson, 0, len(lessons))
	for _, l := range lessons {
		if l.Archived {
			continue
		}
		if category != "" && l.Category != category {
			continue
		}
		eff, tracked := records[l.ID]
		base := neutralScore
		if tracked {
			base = eff.Score
		}
		boosted := base
		if key != "" && tracked {
			boosted = base * s.ctxScorer.Boost(eff, key)
		}
		out = append(out, RankedLesson{
			Lesson:       l,
			Score:        clamp(boosted, 0, 100),
			BaseScore:    base,
			TimesApplied: eff.TimesApplied,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Lesson.ID < out[j].Lesson.ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Underperforming returns lessons applied at least minApps times whose
// score sits below threshold, worst first.
func (s *Scorer) Underperforming(ctx context.Context, lessons []model.Lesson, threshold float64, minApps int) ([]RankedLesson, error) {
	records, err := s.store.AllEffectiveness(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoring: underperforming lessons: %w", err)
	}

	var out []RankedLesson
	for _, l := range lessons {
		eff, ok := records[l.ID]
		if !ok || eff.TimesApplied < minApps {
			continue
		}
		score := s.score(eff)
		if score >= threshold {
			continue
		}
		out = append(out, RankedLesson{
			Lesson:       l,
			Score:        score,
			BaseScore:    score,
			TimesApplied: eff.TimesApplied,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Lesson.ID < out[j].Lesson.ID
		}
		return out[i].Score < out[j].Score
	})
	return out, nil
}

// SuggestImprovements returns textual diagnostics for a struggling lesson.
func (s *Scorer) SuggestImprovements(ctx context.Context, lessonID string) ([]string, error) {
	eff, err := s.store.Effectiveness(ctx, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("scoring: suggest improvements %s: %w", lessonID, err)
	}

	var suggestions []string
	if eff.SuccessRate < 0.70 {
		suggestions = append(suggestions, fmt.Sprintf(
			"success rate is %.0f%%; the lesson's action may be too aggressive or misapplied", eff.SuccessRate*100))
	}
	if v := eff.QualityVariance(); v > 200 {
		suggestions = append(suggestions, fmt.Sprintf(
			"quality variance is %.0f; consider narrowing when the lesson applies", v))
	}
	if len(eff.WorstContexts) > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"performs poorly in %d context(s), e.g. %q; consider excluding them", len(eff.WorstContexts), eff.WorstContexts[0]))
	}
	if eff.AvgQualityImpact < 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"average quality impact is %.1f below baseline; the finding may no longer hold", -eff.AvgQualityImpact))
	}
	return suggestions, nil
}

func ema(prev, value float64) float64 {
	return emaAlpha*value + (1-emaAlpha)*prev
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// appendBounded appends key to list if not already present, keeping only
// the most recent bound entries.
func appendBounded(list []string, key string, bound int) []string {
	for i, existing := range list {
		if existing == key {
			// Move to the end; it is the most recent again.
			list = append(append(list[:i:i], list[i+1:]...), key)
			return list
		}
	}
	list = append(list, key)
	if len(list) > bound {
		list = list[len(list)-bound:]
	}
	return list
}
