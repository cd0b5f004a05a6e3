package store

import (
	"context"
	"fmt"

	"github.com/randysalars/dreamweaving/internal/model"
)

// Effectiveness retrieves the statistical record for a lesson.
// Absence is not exceptional; callers treat ErrNotFound as "untested".
func (s *Store) Effectiveness(ctx context.Context, lessonID string) (model.LessonEffectiveness, error) {
	records := loadMap[model.LessonEffectiveness](ctx, s, ColEffectiveness)
	e, ok := records[lessonID]
	if !ok {
		return model.LessonEffectiveness{}, fmt.Errorf("store: effectiveness for %s: %w", lessonID, ErrNotFound)
	}
	return e, nil
}

// AllEffectiveness returns every tracked lesson record keyed by lesson ID.
func (s *Store) AllEffectiveness(ctx context.Context) (map[string]model.LessonEffectiveness, error) {
	return loadMap[model.LessonEffectiveness](ctx, s, ColEffectiveness), nil
}

// PutEffectiveness upserts one lesson record.
func (s *Store) PutEffectiveness(ctx context.Context, e model.LessonEffectiveness) error {
	records := loadMap[model.LessonEffectiveness](ctx, s, ColEffectiveness)
	records[e.LessonID] = e
	if err := saveMap(ctx, s, ColEffectiveness, records); err != nil {
		return fmt.Errorf("store: put effectiveness: %w", err)
	}
	return nil
}

// Baseline returns the stored global baseline, or the default when none
// has been computed yet.
func (s *Store) Baseline(ctx context.Context) (model.Baseline, error) {
	baselines := loadMap[model.Baseline](ctx, s, ColBaseline)
	b, ok := baselines["global"]
	if !ok {
		return model.DefaultBaseline(), nil
	}
	return b, nil
}

// PutBaseline stores the global baseline.
func (s *Store) PutBaseline(ctx context.Context, b model.Baseline) error {
	baselines := loadMap[model.Baseline](ctx, s, ColBaseline)
	b.UpdatedAt = s.now()
	baselines["global"] = b
	if err := saveMap(ctx, s, ColBaseline, baselines); err != nil {
		return fmt.Errorf("store: put baseline: %w", err)
	}
	return nil
}
