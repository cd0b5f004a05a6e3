// Package store provides the persistence layer for the feedback engine.
//
// State lives in named structured-document collections (outcomes, lesson
// effectiveness, pending checks, query patterns, ...) behind a small
// Backend interface, so the same typed Store works over JSON files, an
// embedded sqlite database, Postgres, or an in-memory map in tests.
// Every write preserves the prior collection state (sibling backup or
// transactional replace) and restores it if the write fails. Reads that
// fail to parse degrade to an empty collection with a logged warning
// rather than raising.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Collection names. Each backend persists one document per name.
const (
	ColOutcomes      = "outcomes"
	ColEffectiveness = "lesson_effectiveness"
	ColPendingChecks = "pending_checks"
	ColLessons       = "lessons"
	ColQueryRecords  = "query_records"
	ColQueryPatterns = "query_patterns"
	ColQueryCache    = "query_cache"
	ColCycleHistory  = "cycle_history"
	ColBaseline      = "baseline"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrNoCollection is returned by backends when a collection has never been
// written. The Store treats it as an empty collection, silently.
var ErrNoCollection = errors.New("store: collection does not exist")

// Backend persists named document collections as opaque JSON values.
// Save must not lose the previously persisted state when it fails.
type Backend interface {
	Load(ctx context.Context, collection string, v any) error
	Save(ctx context.Context, collection string, v any) error
	Close() error
}

// document is the persisted envelope: every collection carries its
// last-updated timestamp alongside the items.
type document[T any] struct {
	UpdatedAt time.Time `json:"updated_at"`
	Items     T         `json:"items"`
}

// Store exposes typed access to all collections over a Backend.
// It assumes a single active writer per scheduled invocation; callers
// must serialize access externally.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over the given backend.
func New(backend Backend, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// loadMap reads a whole keyed collection. Missing collections yield an
// empty map; parse or I/O failures degrade to an empty map with a warning
// so a corrupt file never takes the engine down on the read path.
func loadMap[T any](ctx context.Context, s *Store, name string) map[string]T {
	var doc document[map[string]T]
	if err := s.backend.Load(ctx, name, &doc); err != nil {
		if !errors.Is(err, ErrNoCollection) {
			s.logger.Warn("store: load failed, treating collection as empty",
				"collection", name, "error", err)
		}
		return map[string]T{}
	}
	if doc.Items == nil {
		return map[string]T{}
	}
	return doc.Items
}

// saveMap overwrites a whole keyed collection, stamping updated_at.
func saveMap[T any](ctx context.Context, s *Store, name string, items map[string]T) error {
	return s.backend.Save(ctx, name, document[map[string]T]{
		UpdatedAt: s.now(),
		Items:     items,
	})
}

// loadList and saveList are the slice-shaped equivalents, used for the
// cycle history log.
func loadList[T any](ctx context.Context, s *Store, name string) []T {
	var doc document[[]T]
	if err := s.backend.Load(ctx, name, &doc); err != nil {
		if !errors.Is(err, ErrNoCollection) {
			s.logger.Warn("store: load failed, treating collection as empty",
				"collection", name, "error", err)
		}
		return nil
	}
	return doc.Items
}

func saveList[T any](ctx context.Context, s *Store, name string, items []T) error {
	return s.backend.Save(ctx, name, document[[]T]{
		UpdatedAt: s.now(),
		Items:     items,
	})
}
