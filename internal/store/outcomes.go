package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/randysalars/dreamweaving/internal/model"
)

// RecordOutcome upserts an outcome by ID and returns the ID. Replaying the
// same ID is idempotent: the record is overwritten, never duplicated.
// An empty ID gets a generated one; a zero CreatedAt is stamped now.
func (s *Store) RecordOutcome(ctx context.Context, o model.Outcome) (string, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}

	outcomes := loadMap[model.Outcome](ctx, s, ColOutcomes)
	outcomes[o.ID] = o
	if err := saveMap(ctx, s, ColOutcomes, outcomes); err != nil {
		return "", fmt.Errorf("store: record outcome: %w", err)
	}
	return o.ID, nil
}

// GetOutcome retrieves an outcome by ID.
func (s *Store) GetOutcome(ctx context.Context, id string) (model.Outcome, error) {
	outcomes := loadMap[model.Outcome](ctx, s, ColOutcomes)
	o, ok := outcomes[id]
	if !ok {
		return model.Outcome{}, fmt.Errorf("store: get outcome %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// OutcomesForSubject returns all outcomes for a subject, newest first.
func (s *Store) OutcomesForSubject(ctx context.Context, subject string) ([]model.Outcome, error) {
	outcomes := loadMap[model.Outcome](ctx, s, ColOutcomes)
	var out []model.Outcome
	for _, o := range outcomes {
		if o.Subject == subject {
			out = append(out, o)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

// LatestOutcomeForSubject returns the most recent outcome for a subject.
func (s *Store) LatestOutcomeForSubject(ctx context.Context, subject string) (model.Outcome, error) {
	all, err := s.OutcomesForSubject(ctx, subject)
	if err != nil {
		return model.Outcome{}, err
	}
	if len(all) == 0 {
		return model.Outcome{}, fmt.Errorf("store: latest outcome for %q: %w", subject, ErrNotFound)
	}
	return all[0], nil
}

// UpdateOutcome overwrites an existing outcome. Returns false when no
// outcome with that ID exists (nothing is written).
func (s *Store) UpdateOutcome(ctx context.Context, o model.Outcome) (bool, error) {
	outcomes := loadMap[model.Outcome](ctx, s, ColOutcomes)
	if _, ok := outcomes[o.ID]; !ok {
		return false, nil
	}
	outcomes[o.ID] = o
	if err := saveMap(ctx, s, ColOutcomes, outcomes); err != nil {
		return false, fmt.Errorf("store: update outcome: %w", err)
	}
	return true, nil
}

// RecentOutcomes returns outcomes created within the last windowDays,
// newest first.
func (s *Store) RecentOutcomes(ctx context.Context, windowDays int) ([]model.Outcome, error) {
	cutoff := s.now().AddDate(0, 0, -windowDays)
	outcomes := loadMap[model.Outcome](ctx, s, ColOutcomes)
	var out []model.Outcome
	for _, o := range outcomes {
		if !o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

// OutcomesWithDelayedMetrics returns all outcomes whose delayed metrics
// have arrived, newest first. Used for baseline recalculation.
func (s *Store) OutcomesWithDelayedMetrics(ctx context.Context) ([]model.Outcome, error) {
	outcomes := loadMap[model.Outcome](ctx, s, ColOutcomes)
	var out []model.Outcome
	for _, o := range outcomes {
		if o.Delayed != nil {
			out = append(out, o)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func sortByCreatedDesc(out []model.Outcome) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}

// Now returns the store's current time. Exposed so services share the
// store's (possibly test-injected) clock.
func (s *Store) Now() time.Time {
	return s.now()
}
