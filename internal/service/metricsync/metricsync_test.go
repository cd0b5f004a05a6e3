package metricsync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/service/scoring"
	"github.com/randysalars/dreamweaving/internal/store"
	"github.com/randysalars/dreamweaving/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// fakeFetcher serves canned metrics per external ref and fails the rest.
type fakeFetcher struct {
	metrics map[string]model.DelayedMetrics
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) (model.DelayedMetrics, error) {
	m, ok := f.metrics[ref]
	if !ok {
		return model.DelayedMetrics{}, errors.New("platform unavailable")
	}
	return m, nil
}

func newTestSyncer(t *testing.T, fetcher Fetcher) (*Syncer, *store.Store, *scoring.Scorer) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st := store.New(memstore.New(), logger, store.WithClock(func() time.Time { return testNow }))
	scorer := scoring.New(st, nil, logger)
	return New(st, scorer, fetcher, logger), st, scorer
}

func recordPublished(t *testing.T, st *store.Store, scorer *scoring.Scorer, id, ref string, lessonIDs ...string) {
	t.Helper()
	ctx := context.Background()
	outcome := model.Outcome{
		ID:             id,
		Subject:        "ep",
		CreatedAt:      testNow.AddDate(0, 0, -8),
		AppliedLessons: lessonIDs,
		Immediate:      model.ImmediateMetrics{GenerationSuccess: true, QualityScore: 80},
		DelayedPending: true,
		ExternalRef:    ref,
	}
	_, err := st.RecordOutcome(ctx, outcome)
	require.NoError(t, err)
	for _, lessonID := range lessonIDs {
		require.NoError(t, scorer.Update(ctx, lessonID, outcome, ""))
	}
	// Scheduled eight days ago with a seven day wait: ready now.
	require.NoError(t, st.SchedulePendingCheck(ctx, id, ref, 0))
}

func TestRunAppliesDelayedMetrics(t *testing.T) {
	fetcher := &fakeFetcher{metrics: map[string]model.DelayedMetrics{
		"yt-1": {Views: 1200, RetentionPct: 55, EngagementRate: 0.08, Likes: 40},
	}}
	syncer, st, scorer := newTestSyncer(t, fetcher)
	ctx := context.Background()

	recordPublished(t, st, scorer, "run-1", "yt-1", "l1")

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Ready: 1, Fetched: 1, Applied: 1}, report)

	outcome, err := st.GetOutcome(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, outcome.Delayed)
	assert.Equal(t, 1200, outcome.Delayed.Views)
	assert.Equal(t, testNow, outcome.Delayed.FetchedAt)
	assert.True(t, outcome.MetricsComplete)
	assert.False(t, outcome.DelayedPending)

	// The check is gone and the lesson picked up delayed impacts.
	checks, err := st.PendingChecks(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, checks)

	eff, err := st.Effectiveness(ctx, "l1")
	require.NoError(t, err)
	// EMA from 0 toward (55 - 40 baseline) = +15.
	assert.InDelta(t, 0.3*15, eff.AvgRetentionImpact, 1e-9)
	assert.Greater(t, eff.AvgEngagementImpact, 0.0)
}

func TestRunRetriesFailedFetch(t *testing.T) {
	fetcher := &fakeFetcher{} // everything fails
	syncer, st, scorer := newTestSyncer(t, fetcher)
	ctx := context.Background()

	recordPublished(t, st, scorer, "run-1", "yt-1", "l1")

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Ready: 1, Failed: 1}, report)

	// Check survives for another attempt.
	checks, err := st.PendingChecks(ctx, false)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, 1, checks[0].Attempts)
}

func TestRunDropsExhaustedCheck(t *testing.T) {
	fetcher := &fakeFetcher{}
	syncer, st, scorer := newTestSyncer(t, fetcher)
	ctx := context.Background()

	recordPublished(t, st, scorer, "run-1", "yt-1", "l1")

	var report Report
	var err error
	for i := 0; i < model.DefaultMaxCheckAttempts; i++ {
		report, err = syncer.Run(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, Report{Ready: 1, Failed: 1, Dropped: 1}, report)

	checks, err := st.PendingChecks(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestRunMixedResults(t *testing.T) {
	fetcher := &fakeFetcher{metrics: map[string]model.DelayedMetrics{
		"yt-good": {Views: 500, RetentionPct: 48, EngagementRate: 0.06},
	}}
	syncer, st, scorer := newTestSyncer(t, fetcher)
	ctx := context.Background()

	recordPublished(t, st, scorer, "run-good", "yt-good")
	recordPublished(t, st, scorer, "run-bad", "yt-bad")

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Ready: 2, Fetched: 1, Applied: 1, Failed: 1}, report)
}

func TestRunMissingOutcomeDropsCheck(t *testing.T) {
	fetcher := &fakeFetcher{metrics: map[string]model.DelayedMetrics{"yt-1": {Views: 1}}}
	syncer, st, _ := newTestSyncer(t, fetcher)
	ctx := context.Background()

	// A check whose outcome was never recorded (or was lost).
	require.NoError(t, st.SchedulePendingCheck(ctx, "ghost", "yt-1", 0))

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)

	checks, err := st.PendingChecks(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestRunNothingReady(t *testing.T) {
	syncer, st, _ := newTestSyncer(t, &fakeFetcher{})
	ctx := context.Background()

	require.NoError(t, st.SchedulePendingCheck(ctx, "run-1", "yt-1", 7))

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}
