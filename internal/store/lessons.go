package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/randysalars/dreamweaving/internal/model"
)

// PutLesson upserts a lesson in the catalog.
func (s *Store) PutLesson(ctx context.Context, l model.Lesson) error {
	lessons := loadMap[model.Lesson](ctx, s, ColLessons)
	l.UpdatedAt = s.now()
	lessons[l.ID] = l
	if err := saveMap(ctx, s, ColLessons, lessons); err != nil {
		return fmt.Errorf("store: put lesson: %w", err)
	}
	return nil
}

// GetLesson retrieves a lesson by ID.
func (s *Store) GetLesson(ctx context.Context, id string) (model.Lesson, error) {
	lessons := loadMap[model.Lesson](ctx, s, ColLessons)
	l, ok := lessons[id]
	if !ok {
		return model.Lesson{}, fmt.Errorf("store: get lesson %s: %w", id, ErrNotFound)
	}
	return l, nil
}

// Lessons returns the catalog sorted by category then ID. Archived lessons
// are excluded unless includeArchived is set.
func (s *Store) Lessons(ctx context.Context, includeArchived bool) ([]model.Lesson, error) {
	lessons := loadMap[model.Lesson](ctx, s, ColLessons)
	out := make([]model.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.Archived && !includeArchived {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category == out[j].Category {
			return out[i].ID < out[j].ID
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}
