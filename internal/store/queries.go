package store

import (
	"context"
	"fmt"

	"github.com/randysalars/dreamweaving/internal/model"
)

// PutQueryRecord upserts one executed-query record.
func (s *Store) PutQueryRecord(ctx context.Context, r model.QueryRecord) error {
	records := loadMap[model.QueryRecord](ctx, s, ColQueryRecords)
	records[r.ID] = r
	if err := saveMap(ctx, s, ColQueryRecords, records); err != nil {
		return fmt.Errorf("store: put query record: %w", err)
	}
	return nil
}

// GetQueryRecord retrieves an executed-query record by ID.
func (s *Store) GetQueryRecord(ctx context.Context, id string) (model.QueryRecord, error) {
	records := loadMap[model.QueryRecord](ctx, s, ColQueryRecords)
	r, ok := records[id]
	if !ok {
		return model.QueryRecord{}, fmt.Errorf("store: get query record %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// QueryPattern retrieves a pattern by normalized-query hash.
func (s *Store) QueryPattern(ctx context.Context, hash string) (model.QueryPattern, error) {
	patterns := loadMap[model.QueryPattern](ctx, s, ColQueryPatterns)
	p, ok := patterns[hash]
	if !ok {
		return model.QueryPattern{}, fmt.Errorf("store: query pattern %s: %w", hash, ErrNotFound)
	}
	return p, nil
}

// AllQueryPatterns returns every pattern keyed by hash.
func (s *Store) AllQueryPatterns(ctx context.Context) (map[string]model.QueryPattern, error) {
	return loadMap[model.QueryPattern](ctx, s, ColQueryPatterns), nil
}

// PutQueryPattern upserts one pattern.
func (s *Store) PutQueryPattern(ctx context.Context, p model.QueryPattern) error {
	patterns := loadMap[model.QueryPattern](ctx, s, ColQueryPatterns)
	p.UpdatedAt = s.now()
	patterns[p.Hash] = p
	if err := saveMap(ctx, s, ColQueryPatterns, patterns); err != nil {
		return fmt.Errorf("store: put query pattern: %w", err)
	}
	return nil
}

// CacheEntries returns the whole query cache keyed by hash.
func (s *Store) CacheEntries(ctx context.Context) (map[string]model.CacheEntry, error) {
	return loadMap[model.CacheEntry](ctx, s, ColQueryCache), nil
}

// PutCacheEntries overwrites the whole query cache. Eviction policy lives
// in the queries service; the store just persists the bounded map.
func (s *Store) PutCacheEntries(ctx context.Context, entries map[string]model.CacheEntry) error {
	if err := saveMap(ctx, s, ColQueryCache, entries); err != nil {
		return fmt.Errorf("store: put cache entries: %w", err)
	}
	return nil
}
