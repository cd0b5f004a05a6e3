// Package lessons manages the lesson registry: the findings and actions
// the generator injects into prompts. Confidence tier changes normally
// flow through improvement cycles; SetConfidence exists for manual
// overrides from the CLI.
package lessons

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/store"
)

// Registry provides CRUD over lessons.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Registry.
func New(st *store.Store, logger *slog.Logger) *Registry {
	return &Registry{store: st, logger: logger}
}

// Add stores a new lesson. Blank IDs get a generated UUID; blank
// confidence defaults to low.
func (r *Registry) Add(ctx context.Context, lesson model.Lesson) (model.Lesson, error) {
	if lesson.Finding == "" {
		return model.Lesson{}, fmt.Errorf("lessons: add: finding is required")
	}
	if lesson.Category == "" {
		return model.Lesson{}, fmt.Errorf("lessons: add: category is required")
	}
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.Confidence == "" {
		lesson.Confidence = model.ConfidenceLow
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = r.store.Now()
	}
	if err := r.store.PutLesson(ctx, lesson); err != nil {
		return model.Lesson{}, fmt.Errorf("lessons: add: %w", err)
	}
	r.logger.Info("lessons: added", "lesson_id", lesson.ID, "category", lesson.Category)
	return lesson, nil
}

// Get returns one lesson by ID.
func (r *Registry) Get(ctx context.Context, id string) (model.Lesson, error) {
	return r.store.GetLesson(ctx, id)
}

// List returns lessons sorted by category then ID.
func (r *Registry) List(ctx context.Context, includeArchived bool) ([]model.Lesson, error) {
	return r.store.Lessons(ctx, includeArchived)
}

// SetConfidence overrides a lesson's confidence tier.
func (r *Registry) SetConfidence(ctx context.Context, id string, tier model.ConfidenceTier) error {
	switch tier {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
	default:
		return fmt.Errorf("lessons: set confidence: unknown tier %q", tier)
	}
	lesson, err := r.store.GetLesson(ctx, id)
	if err != nil {
		return fmt.Errorf("lessons: set confidence: %w", err)
	}
	lesson.Confidence = tier
	if err := r.store.PutLesson(ctx, lesson); err != nil {
		return fmt.Errorf("lessons: set confidence: %w", err)
	}
	r.logger.Info("lessons: confidence set", "lesson_id", id, "tier", tier)
	return nil
}

// Archive marks a lesson archived so it stops being recommended. Its
// effectiveness history is kept.
func (r *Registry) Archive(ctx context.Context, id string) error {
	lesson, err := r.store.GetLesson(ctx, id)
	if err != nil {
		return fmt.Errorf("lessons: archive: %w", err)
	}
	if lesson.Archived {
		return nil
	}
	lesson.Archived = true
	now := r.store.Now()
	lesson.ArchivedAt = &now
	if err := r.store.PutLesson(ctx, lesson); err != nil {
		return fmt.Errorf("lessons: archive: %w", err)
	}
	r.logger.Info("lessons: archived", "lesson_id", id)
	return nil
}
