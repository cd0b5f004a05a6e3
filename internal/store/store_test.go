package store_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/store"
	"github.com/randysalars/dreamweaving/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*store.Store, *memstore.Backend, *time.Time) {
	t.Helper()
	backend := memstore.New()
	now := testNow
	st := store.New(backend, slog.New(slog.DiscardHandler), store.WithClock(func() time.Time { return now }))
	return st, backend, &now
}

func TestRecordOutcomeIdempotent(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := st.RecordOutcome(ctx, model.Outcome{
		ID:        "run-1",
		Subject:   "ep-1",
		Immediate: model.ImmediateMetrics{QualityScore: 80},
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	// Replaying the same ID overwrites, never duplicates.
	_, err = st.RecordOutcome(ctx, model.Outcome{
		ID:        "run-1",
		Subject:   "ep-1",
		Immediate: model.ImmediateMetrics{QualityScore: 85},
	})
	require.NoError(t, err)

	all, err := st.OutcomesForSubject(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 85.0, all[0].Immediate.QualityScore)
}

func TestRecordOutcomeGeneratesID(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := st.RecordOutcome(ctx, model.Outcome{Subject: "ep-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := st.GetOutcome(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, testNow, got.CreatedAt)
}

func TestUpdateOutcomeMissing(t *testing.T) {
	st, _, _ := newTestStore(t)

	ok, err := st.UpdateOutcome(context.Background(), model.Outcome{ID: "ghost"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecentOutcomesWindow(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := st.RecordOutcome(ctx, model.Outcome{ID: "old", CreatedAt: testNow.AddDate(0, 0, -40)})
	require.NoError(t, err)
	_, err = st.RecordOutcome(ctx, model.Outcome{ID: "recent", CreatedAt: testNow.AddDate(0, 0, -5)})
	require.NoError(t, err)

	recent, err := st.RecentOutcomes(ctx, 30)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "recent", recent[0].ID)
}

func TestPendingCheckReadiness(t *testing.T) {
	st, _, now := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SchedulePendingCheck(ctx, "run-1", "yt-abc", 7))

	// Rescheduling is a no-op.
	require.NoError(t, st.SchedulePendingCheck(ctx, "run-1", "other-ref", 1))

	ready, err := st.PendingChecks(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, ready)

	// Six days later: still waiting.
	*now = testNow.Add(6 * 24 * time.Hour)
	ready, err = st.PendingChecks(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, ready)

	// Day seven: ready, with the original ref.
	*now = testNow.Add(7 * 24 * time.Hour)
	ready, err = st.PendingChecks(ctx, true)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "yt-abc", ready[0].ExternalRef)
}

func TestIncrementCheckAttemptsExhaustion(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SchedulePendingCheck(ctx, "run-1", "yt-abc", 0))

	for i := 0; i < model.DefaultMaxCheckAttempts-1; i++ {
		retry, err := st.IncrementCheckAttempts(ctx, "run-1")
		require.NoError(t, err)
		assert.True(t, retry, "attempt %d should allow retry", i+1)
	}

	// Final attempt drops the check for good.
	retry, err := st.IncrementCheckAttempts(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, retry)

	all, err := st.PendingChecks(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCycleHistoryBounded(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < model.MaxCycleHistory+10; i++ {
		require.NoError(t, st.AppendCycle(ctx, model.CycleRecord{
			ID:     fmt.Sprintf("cycle-%d", i),
			Status: model.CycleStatusOK,
		}))
	}

	history, err := st.CycleHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, model.MaxCycleHistory)
	// Oldest entries were trimmed.
	assert.Equal(t, "cycle-10", history[0].ID)

	latest, err := st.LatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("cycle-%d", model.MaxCycleHistory+9), latest.ID)
}

func TestBaselineDefault(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	b, err := st.Baseline(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultBaseline().Quality, b.Quality)

	require.NoError(t, st.PutBaseline(ctx, model.Baseline{Quality: 75, SampleCount: 12}))
	b, err = st.Baseline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75.0, b.Quality)
	assert.Equal(t, testNow, b.UpdatedAt)
}

func TestWriteFailureKeepsPriorState(t *testing.T) {
	st, backend, _ := newTestStore(t)
	ctx := context.Background()

	_, err := st.RecordOutcome(ctx, model.Outcome{ID: "run-1", Subject: "ep-1"})
	require.NoError(t, err)

	backend.FailWrites = true
	_, err = st.RecordOutcome(ctx, model.Outcome{ID: "run-2", Subject: "ep-1"})
	require.Error(t, err)
	backend.FailWrites = false

	// The original record is intact and the failed one absent.
	_, err = st.GetOutcome(ctx, "run-1")
	require.NoError(t, err)
	_, err = st.GetOutcome(ctx, "run-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEffectivenessNotFound(t *testing.T) {
	st, _, _ := newTestStore(t)

	_, err := st.Effectiveness(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
