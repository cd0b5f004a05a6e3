package dreamweaving_test

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randysalars/dreamweaving"
	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/service/metricsync"
	"github.com/randysalars/dreamweaving/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	metrics map[string]model.DelayedMetrics
}

func (f *fakeFetcher) Fetch(_ context.Context, externalRef string) (model.DelayedMetrics, error) {
	m, ok := f.metrics[externalRef]
	if !ok {
		return model.DelayedMetrics{}, fmt.Errorf("no metrics for %s", externalRef)
	}
	return m, nil
}

func newTestEngine(t *testing.T, now *time.Time, extra ...dreamweaving.Option) *dreamweaving.Engine {
	t.Helper()
	opts := append([]dreamweaving.Option{
		dreamweaving.WithBackend(memstore.New()),
		dreamweaving.WithLogger(slog.New(slog.DiscardHandler)),
		dreamweaving.WithSummaryPath(filepath.Join(t.TempDir(), "best_practices.md")),
		dreamweaving.WithClock(func() time.Time { return *now }),
	}, extra...)
	eng, err := dreamweaving.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestFeedbackLoopEndToEnd(t *testing.T) {
	now := testNow
	eng := newTestEngine(t, &now)
	ctx := context.Background()

	lesson, err := eng.Lessons().Add(ctx, model.Lesson{
		Finding:  "slow breathing cues in the first minute deepen trance faster",
		Action:   "open with three paced breathing cues",
		Category: "induction",
	})
	require.NoError(t, err)

	// An untested lesson ranks at the neutral score.
	rec, err := eng.Recommend(ctx, dreamweaving.RecommendRequest{Topic: "deep sleep"})
	require.NoError(t, err)
	require.Len(t, rec.Lessons, 1)
	assert.Equal(t, 50.0, rec.Lessons[0].Score)
	assert.NotEmpty(t, rec.PromptBlock)

	for i := 0; i < 3; i++ {
		_, err := eng.RecordRunOutcome(ctx, model.Outcome{
			Subject:        fmt.Sprintf("ep-%d", i),
			Context:        model.GenerationContext{Topic: "deep sleep"},
			AppliedLessons: []string{lesson.ID},
			Immediate:      model.ImmediateMetrics{GenerationSuccess: true, QualityScore: 90},
		})
		require.NoError(t, err)
	}

	rec, err = eng.Recommend(ctx, dreamweaving.RecommendRequest{Topic: "deep sleep"})
	require.NoError(t, err)
	require.Len(t, rec.Lessons, 1)
	assert.Greater(t, rec.Lessons[0].Score, 50.0)
	assert.Equal(t, 3, rec.Lessons[0].TimesApplied)
}

func TestRecordRunOutcomeSchedulesDelayedCheck(t *testing.T) {
	now := testNow
	eng := newTestEngine(t, &now)
	ctx := context.Background()

	id, err := eng.RecordRunOutcome(ctx, model.Outcome{
		Subject:     "ep-1",
		ExternalRef: "yt-abc",
		Context:     model.GenerationContext{Topic: "focus"},
		Immediate:   model.ImmediateMetrics{GenerationSuccess: true, QualityScore: 80},
	})
	require.NoError(t, err)

	checks, err := eng.Store().PendingChecks(ctx, false)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, id, checks[0].OutcomeID)
	assert.Equal(t, "yt-abc", checks[0].ExternalRef)
}

func TestSyncDelayedMetricsDisabled(t *testing.T) {
	now := testNow
	eng := newTestEngine(t, &now)

	_, err := eng.SyncDelayedMetrics(context.Background())
	assert.ErrorIs(t, err, dreamweaving.ErrSyncDisabled)
}

func TestSyncDelayedMetricsAppliesWhenReady(t *testing.T) {
	now := testNow
	eng := newTestEngine(t, &now, dreamweaving.WithMetricsFetcher(&fakeFetcher{
		metrics: map[string]model.DelayedMetrics{
			"yt-abc": {Views: 1500, RetentionPct: 60, EngagementRate: 0.07},
		},
	}))
	ctx := context.Background()

	id, err := eng.RecordRunOutcome(ctx, model.Outcome{
		Subject:     "ep-1",
		ExternalRef: "yt-abc",
		Context:     model.GenerationContext{Topic: "focus"},
		Immediate:   model.ImmediateMetrics{GenerationSuccess: true, QualityScore: 80},
	})
	require.NoError(t, err)

	// Nothing is ready until the waiting period has elapsed.
	report, err := eng.SyncDelayedMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Ready)

	now = now.Add(8 * 24 * time.Hour)
	report, err = eng.SyncDelayedMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, metricsync.Report{Ready: 1, Fetched: 1, Applied: 1}, report)

	got, err := eng.Store().GetOutcome(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Delayed)
	assert.Equal(t, 1500, got.Delayed.Views)
	assert.False(t, got.DelayedPending)
}
