package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/randysalars/dreamweaving/internal/model"
)

// SchedulePendingCheck queues a delayed-metrics check for an outcome.
// No-op when a check is already scheduled for that outcome ID.
func (s *Store) SchedulePendingCheck(ctx context.Context, outcomeID, externalRef string, daysToWait int) error {
	checks := loadMap[model.PendingCheck](ctx, s, ColPendingChecks)
	if _, ok := checks[outcomeID]; ok {
		return nil
	}
	checks[outcomeID] = model.PendingCheck{
		OutcomeID:   outcomeID,
		ExternalRef: externalRef,
		ScheduledAt: s.now(),
		DaysToWait:  daysToWait,
		MaxAttempts: model.DefaultMaxCheckAttempts,
	}
	if err := saveMap(ctx, s, ColPendingChecks, checks); err != nil {
		return fmt.Errorf("store: schedule pending check: %w", err)
	}
	return nil
}

// PendingChecks returns scheduled checks, oldest first. With readyOnly,
// only checks whose waiting period has elapsed are returned.
func (s *Store) PendingChecks(ctx context.Context, readyOnly bool) ([]model.PendingCheck, error) {
	checks := loadMap[model.PendingCheck](ctx, s, ColPendingChecks)
	now := s.now()
	var out []model.PendingCheck
	for _, c := range checks {
		if readyOnly && !c.Ready(now) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].OutcomeID < out[j].OutcomeID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

// CompletePendingCheck removes a check after its metrics were fetched.
func (s *Store) CompletePendingCheck(ctx context.Context, outcomeID string) error {
	checks := loadMap[model.PendingCheck](ctx, s, ColPendingChecks)
	if _, ok := checks[outcomeID]; !ok {
		return nil
	}
	delete(checks, outcomeID)
	if err := saveMap(ctx, s, ColPendingChecks, checks); err != nil {
		return fmt.Errorf("store: complete pending check: %w", err)
	}
	return nil
}

// IncrementCheckAttempts bumps the attempt counter on a check. Returns
// true while the check should be retried; once attempts reach the cap the
// check is removed, logged, and false is returned; it never resurfaces.
func (s *Store) IncrementCheckAttempts(ctx context.Context, outcomeID string) (bool, error) {
	checks := loadMap[model.PendingCheck](ctx, s, ColPendingChecks)
	c, ok := checks[outcomeID]
	if !ok {
		return false, nil
	}
	c.Attempts++
	if c.Attempts >= c.MaxAttempts {
		delete(checks, outcomeID)
		if err := saveMap(ctx, s, ColPendingChecks, checks); err != nil {
			return false, fmt.Errorf("store: drop exhausted check: %w", err)
		}
		s.logger.Info("store: pending check dropped after max attempts",
			"outcome_id", outcomeID, "attempts", c.Attempts)
		return false, nil
	}
	checks[outcomeID] = c
	if err := saveMap(ctx, s, ColPendingChecks, checks); err != nil {
		return false, fmt.Errorf("store: increment check attempts: %w", err)
	}
	return true, nil
}
