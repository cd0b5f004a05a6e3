// Package improve runs the periodic improvement cycle: rescoring every
// lesson against recent outcomes, adjusting confidence tiers, surfacing
// candidate lessons from high-quality runs, and regenerating the
// best-practices summary.
package improve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/service/lessons"
	"github.com/randysalars/dreamweaving/internal/service/scoring"
	"github.com/randysalars/dreamweaving/internal/store"
	"github.com/randysalars/dreamweaving/internal/telemetry"
)

const (
	promoteScore   = 70.0
	promoteMinUses = 5

	demoteScore   = 40.0
	demoteMinUses = 5

	archiveScore   = 30.0
	archiveMinUses = 10

	// Candidate detection: tokens longer than this from the topics of
	// high-quality outcomes, seen across enough distinct topics.
	candidateQuality   = 80.0
	candidateMinRuns   = 3
	candidateMinTopics = 3
	candidateTokenLen  = 4
)

// Orchestrator drives improvement cycles.
type Orchestrator struct {
	store       *store.Store
	scorer      *scoring.Scorer
	registry    *lessons.Registry
	logger      *slog.Logger
	summaryPath string

	cycles metric.Int64Counter
}

// New creates an Orchestrator. summaryPath may be empty to skip summary
// regeneration.
func New(st *store.Store, scorer *scoring.Scorer, registry *lessons.Registry, summaryPath string, logger *slog.Logger) *Orchestrator {
	meter := telemetry.Meter("dreamweaving/improve")
	cycles, _ := meter.Int64Counter("dreamweave.improve.cycles",
		metric.WithDescription("Improvement cycles run"),
	)
	return &Orchestrator{
		store:       st,
		scorer:      scorer,
		registry:    registry,
		logger:      logger,
		summaryPath: summaryPath,
		cycles:      cycles,
	}
}

// RunCycle executes one improvement cycle over outcomes from the lookback
// window. Phase failures mark the cycle record as errored rather than
// returning an error; only a failure to persist the record itself is
// returned.
func (o *Orchestrator) RunCycle(ctx context.Context, scope string, lookbackDays int) (model.CycleRecord, error) {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	record := model.CycleRecord{
		ID:           uuid.NewString(),
		Scope:        scope,
		LookbackDays: lookbackDays,
		StartedAt:    o.store.Now(),
		Status:       model.CycleStatusOK,
	}
	o.logger.Info("improve: cycle starting", "cycle_id", record.ID, "scope", scope, "lookback_days", lookbackDays)

	if err := o.runPhases(ctx, &record); err != nil {
		record.Status = model.CycleStatusError
		record.Error = err.Error()
		o.logger.Error("improve: cycle failed", "cycle_id", record.ID, "error", err)
	}

	done := o.store.Now()
	record.CompletedAt = &done
	if err := o.store.AppendCycle(ctx, record); err != nil {
		return record, fmt.Errorf("improve: persist cycle %s: %w", record.ID, err)
	}
	o.cycles.Add(ctx, 1)
	o.logger.Info("improve: cycle complete",
		"cycle_id", record.ID, "status", record.Status,
		"outcomes", record.OutcomesReviewed, "scored", record.LessonsScored,
		"promoted", len(record.Promoted), "demoted", len(record.Demoted),
		"archived", len(record.Archived), "suggestions", len(record.Suggestions))
	return record, nil
}

func (o *Orchestrator) runPhases(ctx context.Context, record *model.CycleRecord) error {
	outcomes, err := o.store.RecentOutcomes(ctx, record.LookbackDays)
	if err != nil {
		return fmt.Errorf("gather outcomes: %w", err)
	}
	record.OutcomesReviewed = len(outcomes)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.scorer.RecalculateBaseline(ctx); err != nil {
		return fmt.Errorf("recalculate baseline: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.rescore(ctx, record); err != nil {
		return fmt.Errorf("rescore lessons: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.adjustTiers(ctx, record); err != nil {
		return fmt.Errorf("adjust tiers: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	record.Suggestions = o.detectCandidates(outcomes)

	if err := ctx.Err(); err != nil {
		return err
	}
	if o.summaryPath != "" {
		if err := o.RegenerateSummary(ctx); err != nil {
			return fmt.Errorf("regenerate summary: %w", err)
		}
	}
	return nil
}

// rescore recomputes and stores every tracked lesson's composite score.
func (o *Orchestrator) rescore(ctx context.Context, record *model.CycleRecord) error {
	records, err := o.store.AllEffectiveness(ctx)
	if err != nil {
		return err
	}
	for _, eff := range records {
		score, err := o.scorer.Calculate(ctx, eff.LessonID)
		if err != nil {
			return err
		}
		eff.Score = score
		if err := o.store.PutEffectiveness(ctx, eff); err != nil {
			return err
		}
		record.LessonsScored++
	}
	return nil
}

// adjustTiers applies the archive, promote, and staged-demote rules.
// Archival is checked first so a lesson that qualifies for both archive
// and demotion is archived.
func (o *Orchestrator) adjustTiers(ctx context.Context, record *model.CycleRecord) error {
	all, err := o.registry.List(ctx, false)
	if err != nil {
		return err
	}
	records, err := o.store.AllEffectiveness(ctx)
	if err != nil {
		return err
	}

	for _, lesson := range all {
		eff, tracked := records[lesson.ID]
		if !tracked {
			continue
		}
		switch {
		case eff.Score <= archiveScore && eff.TimesApplied >= archiveMinUses:
			if err := o.registry.Archive(ctx, lesson.ID); err != nil {
				return err
			}
			record.Archived = append(record.Archived, lesson.ID)

		case eff.Score >= promoteScore && eff.TimesApplied >= promoteMinUses:
			if lesson.Confidence != model.ConfidenceHigh {
				if err := o.registry.SetConfidence(ctx, lesson.ID, model.ConfidenceHigh); err != nil {
					return err
				}
				record.Promoted = append(record.Promoted, lesson.ID)
			}

		case eff.Score <= demoteScore && eff.TimesApplied >= demoteMinUses:
			// One tier per cycle; a bad lesson walks high -> medium -> low
			// across consecutive cycles rather than dropping at once.
			next := lesson.Confidence.Demoted()
			if next != lesson.Confidence {
				if err := o.registry.SetConfidence(ctx, lesson.ID, next); err != nil {
					return err
				}
				record.Demoted = append(record.Demoted, lesson.ID)
			}
		}
	}
	return nil
}

// detectCandidates mines the topics of high-quality outcomes for recurring
// thematic tokens. Suggestions only; nothing is auto-added to the registry.
func (o *Orchestrator) detectCandidates(outcomes []model.Outcome) []model.LessonSuggestion {
	type tokenStats struct {
		quality float64
		count   int
		topics  map[string]struct{}
	}

	var good []model.Outcome
	for _, out := range outcomes {
		if out.Immediate.QualityScore >= candidateQuality {
			good = append(good, out)
		}
	}
	if len(good) < candidateMinRuns {
		return nil
	}

	stats := map[string]*tokenStats{}
	for _, out := range good {
		topic := model.NormalizeText(out.Context.Topic)
		if topic == "" {
			continue
		}
		for _, tok := range strings.Fields(topic) {
			if len(tok) <= candidateTokenLen {
				continue
			}
			st, ok := stats[tok]
			if !ok {
				st = &tokenStats{topics: map[string]struct{}{}}
				stats[tok] = st
			}
			st.count++
			st.quality += out.Immediate.QualityScore
			st.topics[topic] = struct{}{}
		}
	}

	var suggestions []model.LessonSuggestion
	for tok, st := range stats {
		if len(st.topics) < candidateMinTopics {
			continue
		}
		topics := make([]string, 0, len(st.topics))
		for t := range st.topics {
			topics = append(topics, t)
		}
		sort.Strings(topics)
		suggestions = append(suggestions, model.LessonSuggestion{
			Token:       tok,
			Occurrences: st.count,
			AvgQuality:  st.quality / float64(st.count),
			Topics:      topics,
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Occurrences == suggestions[j].Occurrences {
			return suggestions[i].Token < suggestions[j].Token
		}
		return suggestions[i].Occurrences > suggestions[j].Occurrences
	})
	return suggestions
}
