// Package metricsync pulls delayed engagement metrics from the publishing
// platform for outcomes whose wait period has elapsed, and folds them into
// outcome records and lesson effectiveness.
package metricsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/service/scoring"
	"github.com/randysalars/dreamweaving/internal/store"
)

// maxConcurrentFetches bounds parallel calls to the platform API.
const maxConcurrentFetches = 4

// Fetcher retrieves delayed metrics for a published piece of content.
type Fetcher interface {
	Fetch(ctx context.Context, externalRef string) (model.DelayedMetrics, error)
}

// Report summarizes one sync run.
type Report struct {
	Ready   int `json:"ready"`
	Fetched int `json:"fetched"`
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"` // checks removed after exhausting attempts
}

// Syncer runs the delayed-metrics pipeline: ready checks are fetched
// concurrently, then applied serially so store writes never race.
type Syncer struct {
	store   *store.Store
	scorer  *scoring.Scorer
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a Syncer.
func New(st *store.Store, scorer *scoring.Scorer, fetcher Fetcher, logger *slog.Logger) *Syncer {
	return &Syncer{store: st, scorer: scorer, fetcher: fetcher, logger: logger}
}

type fetchResult struct {
	check   model.PendingCheck
	metrics model.DelayedMetrics
	err     error
}

// Run processes all ready pending checks once.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	checks, err := s.store.PendingChecks(ctx, true)
	if err != nil {
		return Report{}, fmt.Errorf("metricsync: list ready checks: %w", err)
	}
	report := Report{Ready: len(checks)}
	if len(checks) == 0 {
		return report, nil
	}

	results := make([]fetchResult, len(checks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, check := range checks {
		g.Go(func() error {
			metrics, err := s.fetcher.Fetch(gctx, check.ExternalRef)
			mu.Lock()
			results[i] = fetchResult{check: check, metrics: metrics, err: err}
			mu.Unlock()
			return nil // fetch errors are handled per check, not fatally
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("metricsync: fetch: %w", err)
	}

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if res.err != nil {
			report.Failed++
			s.logger.Warn("metricsync: fetch failed",
				"outcome_id", res.check.OutcomeID, "external_ref", res.check.ExternalRef,
				"attempt", res.check.Attempts+1, "error", res.err)
			retry, err := s.store.IncrementCheckAttempts(ctx, res.check.OutcomeID)
			if err != nil {
				return report, fmt.Errorf("metricsync: record failed attempt: %w", err)
			}
			if !retry {
				report.Dropped++
			}
			continue
		}
		report.Fetched++
		if err := s.apply(ctx, res.check, res.metrics); err != nil {
			return report, err
		}
		report.Applied++
	}

	s.logger.Info("metricsync: run complete",
		"ready", report.Ready, "fetched", report.Fetched,
		"applied", report.Applied, "failed", report.Failed, "dropped", report.Dropped)
	return report, nil
}

// apply writes the metrics onto the outcome and updates every applied
// lesson's delayed-impact averages.
func (s *Syncer) apply(ctx context.Context, check model.PendingCheck, metrics model.DelayedMetrics) error {
	outcome, err := s.store.GetOutcome(ctx, check.OutcomeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("metricsync: pending check for missing outcome, dropping",
				"outcome_id", check.OutcomeID)
			return s.store.CompletePendingCheck(ctx, check.OutcomeID)
		}
		return fmt.Errorf("metricsync: load outcome %s: %w", check.OutcomeID, err)
	}

	metrics.FetchedAt = s.store.Now()
	outcome.Delayed = &metrics
	outcome.MetricsComplete = true
	outcome.DelayedPending = false
	if _, err := s.store.UpdateOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("metricsync: update outcome %s: %w", check.OutcomeID, err)
	}

	baseline, err := s.store.Baseline(ctx)
	if err != nil {
		return fmt.Errorf("metricsync: load baseline: %w", err)
	}
	for _, lessonID := range outcome.AppliedLessons {
		if err := s.scorer.ApplyDelayedMetrics(ctx, lessonID,
			metrics.RetentionPct, metrics.EngagementRate,
			baseline.RetentionPct, baseline.EngagementRate,
		); err != nil {
			return fmt.Errorf("metricsync: apply to lesson %s: %w", lessonID, err)
		}
	}

	if err := s.store.CompletePendingCheck(ctx, check.OutcomeID); err != nil {
		return fmt.Errorf("metricsync: complete check %s: %w", check.OutcomeID, err)
	}
	return nil
}
