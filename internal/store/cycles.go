package store

import (
	"context"
	"fmt"

	"github.com/randysalars/dreamweaving/internal/model"
)

// AppendCycle appends a cycle record to the history log, trimming the
// oldest entries beyond the bound. The log is append-only from the
// caller's perspective; records are never edited after the fact.
func (s *Store) AppendCycle(ctx context.Context, rec model.CycleRecord) error {
	history := loadList[model.CycleRecord](ctx, s, ColCycleHistory)
	history = append(history, rec)
	if len(history) > model.MaxCycleHistory {
		history = history[len(history)-model.MaxCycleHistory:]
	}
	if err := saveList(ctx, s, ColCycleHistory, history); err != nil {
		return fmt.Errorf("store: append cycle: %w", err)
	}
	return nil
}

// CycleHistory returns the bounded cycle log, oldest first.
func (s *Store) CycleHistory(ctx context.Context) ([]model.CycleRecord, error) {
	return loadList[model.CycleRecord](ctx, s, ColCycleHistory), nil
}

// LatestCycle returns the most recent cycle record.
func (s *Store) LatestCycle(ctx context.Context) (model.CycleRecord, error) {
	history := loadList[model.CycleRecord](ctx, s, ColCycleHistory)
	if len(history) == 0 {
		return model.CycleRecord{}, fmt.Errorf("store: latest cycle: %w", ErrNotFound)
	}
	return history[len(history)-1], nil
}
