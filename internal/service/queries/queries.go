// Package queries tracks knowledge-base query performance and maintains
// the cache of proven queries. Every search is recorded; once an outcome
// links a query to a quality score, the query's pattern statistics and the
// proven-query cache are updated.
package queries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel/metric"

	"github.com/randysalars/dreamweaving/internal/knowledge"
	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/store"
	"github.com/randysalars/dreamweaving/internal/telemetry"
)

const (
	emaAlpha = 0.3

	// cacheCapacity bounds the proven-query cache; the lowest-quality
	// entry is evicted when a new one is admitted at capacity.
	cacheCapacity = 500

	// cacheAdmissionQuality is the minimum outcome quality for a query
	// to enter the proven cache.
	cacheAdmissionQuality = 70.0

	bestTopicQuality  = 75.0
	worstTopicQuality = 50.0
)

// Cache records query executions, aggregates per-pattern statistics, and
// serves proven-query lookups.
type Cache struct {
	store     *store.Store
	retriever knowledge.Retriever
	logger    *slog.Logger
	capacity  int

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// New creates a Cache. retriever may be nil when only recording and
// lookups are needed.
func New(st *store.Store, retriever knowledge.Retriever, logger *slog.Logger) *Cache {
	if retriever == nil {
		retriever = knowledge.NoopRetriever{}
	}
	meter := telemetry.Meter("dreamweaving/queries")
	hits, _ := meter.Int64Counter("dreamweave.queries.cache_hits",
		metric.WithDescription("Proven-query cache hits"),
	)
	misses, _ := meter.Int64Counter("dreamweave.queries.cache_misses",
		metric.WithDescription("Proven-query cache misses"),
	)
	return &Cache{
		store:     st,
		retriever: retriever,
		logger:    logger,
		capacity:  cacheCapacity,
		hits:      hits,
		misses:    misses,
	}
}

// HashQuery returns the canonical hash of a query: xxh3 over its
// normalized text, hex encoded. Two queries differing only in case or
// whitespace share a hash.
func HashQuery(query string) string {
	return strconv.FormatUint(xxh3.HashString(model.NormalizeText(query)), 16)
}

// Search executes a retrieval, times it, and records the execution.
// Recording failures are logged, not returned; a bookkeeping problem must
// not break retrieval.
func (c *Cache) Search(ctx context.Context, query, subject, contentType, purpose string, limit int) ([]knowledge.Result, model.QueryRecord, error) {
	start := time.Now()
	results, err := c.retriever.Search(ctx, query, limit)
	if err != nil {
		return nil, model.QueryRecord{}, fmt.Errorf("queries: search: %w", err)
	}
	elapsed := time.Since(start)

	var top float64
	if len(results) > 0 {
		top = float64(results[0].Score)
	}
	rec := model.QueryRecord{
		ID:           uuid.NewString(),
		Query:        query,
		Hash:         HashQuery(query),
		Subject:      subject,
		ContentType:  contentType,
		Purpose:      purpose,
		ResultCount:  len(results),
		TopRelevance: top,
		ExecutionMs:  elapsed.Milliseconds(),
		CreatedAt:    c.store.Now(),
	}
	if err := c.RecordQuery(ctx, rec); err != nil {
		c.logger.Warn("queries: failed to record execution", "error", err, "hash", rec.Hash)
	}
	return results, rec, nil
}

// RecordQuery stores one execution and folds it into the pattern for the
// query's hash.
func (c *Cache) RecordQuery(ctx context.Context, rec model.QueryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Hash == "" {
		rec.Hash = HashQuery(rec.Query)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.store.Now()
	}
	if err := c.store.PutQueryRecord(ctx, rec); err != nil {
		return fmt.Errorf("queries: record: %w", err)
	}

	pattern, err := c.store.QueryPattern(ctx, rec.Hash)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("queries: record: %w", err)
		}
		pattern = model.QueryPattern{
			Hash:        rec.Hash,
			Query:       rec.Query,
			ContentType: rec.ContentType,
		}
	}

	pattern.TimesUsed++
	if rec.Subject != "" {
		pattern.Subjects = appendBounded(pattern.Subjects, model.NormalizeText(rec.Subject), model.MaxPatternSubjects)
	}
	// Running mean over all executions.
	pattern.AvgTopRelevance += (rec.TopRelevance - pattern.AvgTopRelevance) / float64(pattern.TimesUsed)
	pattern.UpdatedAt = c.store.Now()

	if err := c.store.PutQueryPattern(ctx, pattern); err != nil {
		return fmt.Errorf("queries: record: %w", err)
	}
	return nil
}

// LinkQueryToOutcome attaches an outcome's quality score to a recorded
// query, updating the pattern's quality statistics and (for good queries)
// the proven cache.
func (c *Cache) LinkQueryToOutcome(ctx context.Context, recordID, outcomeID string, quality float64) error {
	rec, err := c.store.GetQueryRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("queries: link %s: %w", recordID, err)
	}
	rec.OutcomeID = outcomeID
	rec.QualityScore = &quality
	if err := c.store.PutQueryRecord(ctx, rec); err != nil {
		return fmt.Errorf("queries: link %s: %w", recordID, err)
	}

	pattern, err := c.store.QueryPattern(ctx, rec.Hash)
	if err != nil {
		return fmt.Errorf("queries: link %s: %w", recordID, err)
	}

	if pattern.AvgQuality == 0 {
		pattern.AvgQuality = quality
	} else {
		pattern.AvgQuality = emaAlpha*quality + (1-emaAlpha)*pattern.AvgQuality
	}

	subject := model.NormalizeText(rec.Subject)
	if subject != "" {
		pattern.Subjects = appendBounded(pattern.Subjects, subject, model.MaxPatternSubjects)
		if pattern.SubjectQuality == nil {
			pattern.SubjectQuality = map[string]float64{}
		}
		if prev, ok := pattern.SubjectQuality[subject]; ok {
			pattern.SubjectQuality[subject] = emaAlpha*quality + (1-emaAlpha)*prev
		} else {
			pattern.SubjectQuality[subject] = quality
		}
		if quality >= bestTopicQuality {
			pattern.BestTopics = appendBounded(pattern.BestTopics, subject, 10)
		} else if quality < worstTopicQuality {
			pattern.WorstTopics = appendBounded(pattern.WorstTopics, subject, 10)
		}
	}

	// Quality entries follow the bounded subject list; a subject evicted
	// from Subjects stops counting toward the success rate.
	if len(pattern.SubjectQuality) > 0 {
		recent := make(map[string]bool, len(pattern.Subjects))
		for _, s := range pattern.Subjects {
			recent[s] = true
		}
		for s := range pattern.SubjectQuality {
			if !recent[s] {
				delete(pattern.SubjectQuality, s)
			}
		}
	}

	// Success rate over the recent subjects with a known quality.
	if len(pattern.SubjectQuality) > 0 {
		var successes int
		for _, q := range pattern.SubjectQuality {
			if q >= model.QuerySuccessQuality {
				successes++
			}
		}
		pattern.SuccessRate = float64(successes) / float64(len(pattern.SubjectQuality))
	}
	pattern.UpdatedAt = c.store.Now()

	if err := c.store.PutQueryPattern(ctx, pattern); err != nil {
		return fmt.Errorf("queries: link %s: %w", recordID, err)
	}

	if quality >= cacheAdmissionQuality {
		if err := c.admit(ctx, rec, quality); err != nil {
			return fmt.Errorf("queries: link %s: %w", recordID, err)
		}
	}
	return nil
}

// admit inserts or refreshes a proven-cache entry, evicting the
// lowest-quality entry when the cache is full.
func (c *Cache) admit(ctx context.Context, rec model.QueryRecord, quality float64) error {
	entries, err := c.store.CacheEntries(ctx)
	if err != nil {
		return err
	}

	now := c.store.Now()
	if existing, ok := entries[rec.Hash]; ok {
		existing.Quality = emaAlpha*quality + (1-emaAlpha)*existing.Quality
		existing.LastUsedAt = now
		entries[rec.Hash] = existing
		return c.store.PutCacheEntries(ctx, entries)
	}

	if len(entries) >= c.capacity {
		var lowestHash string
		lowestQuality := math.Inf(1)
		for hash, e := range entries {
			if e.Quality < lowestQuality || (e.Quality == lowestQuality && hash < lowestHash) {
				lowestHash = hash
				lowestQuality = e.Quality
			}
		}
		c.logger.Debug("queries: cache full, evicting",
			"hash", lowestHash, "quality", lowestQuality)
		delete(entries, lowestHash)
	}

	entries[rec.Hash] = model.CacheEntry{
		Hash:       rec.Hash,
		Query:      rec.Query,
		Quality:    quality,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	return c.store.PutCacheEntries(ctx, entries)
}

// CachedQuery looks up a proven entry by the query's normalized hash,
// bumping its use count on a hit.
func (c *Cache) CachedQuery(ctx context.Context, query string) (model.CacheEntry, bool, error) {
	hash := HashQuery(query)
	entries, err := c.store.CacheEntries(ctx)
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("queries: cached lookup: %w", err)
	}
	entry, ok := entries[hash]
	if !ok {
		c.misses.Add(ctx, 1)
		return model.CacheEntry{}, false, nil
	}
	c.hits.Add(ctx, 1)
	entry.UseCount++
	entry.LastUsedAt = c.store.Now()
	entries[hash] = entry
	if err := c.store.PutCacheEntries(ctx, entries); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("queries: cached lookup: %w", err)
	}
	return entry, true, nil
}

// EffectivePatterns returns patterns used at least minUses times with
// average quality of at least minQuality, best first. contentType narrows
// to one content type when non-empty; limit <= 0 means no truncation.
func (c *Cache) EffectivePatterns(ctx context.Context, contentType string, minUses int, minQuality float64, limit int) ([]model.QueryPattern, error) {
	patterns, err := c.store.AllQueryPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("queries: effective patterns: %w", err)
	}
	var out []model.QueryPattern
	for _, p := range patterns {
		if contentType != "" && p.ContentType != contentType {
			continue
		}
		if p.TimesUsed >= minUses && p.AvgQuality >= minQuality {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgQuality == out[j].AvgQuality {
			return out[i].Hash < out[j].Hash
		}
		return out[i].AvgQuality > out[j].AvgQuality
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// QuerySuggestion is a proven query recommended for a topic.
type QuerySuggestion struct {
	Query   string  `json:"query"`
	Hash    string  `json:"hash"`
	Score   float64 `json:"score"`
	Quality float64 `json:"quality"`
}

// SuggestQueries ranks proven patterns for a topic. A pattern's score is
// its average quality plus five points per topic or desired-outcome token
// shared with the pattern's query or recorded subjects. contentType narrows
// to one content type when non-empty.
func (c *Cache) SuggestQueries(ctx context.Context, topic, desiredOutcome, contentType string, limit int) ([]QuerySuggestion, error) {
	if limit <= 0 {
		limit = 5
	}
	patterns, err := c.store.AllQueryPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("queries: suggest: %w", err)
	}

	seen := map[string]bool{}
	var topicTokens []string
	for _, tok := range strings.Fields(model.NormalizeText(topic + " " + desiredOutcome)) {
		if !seen[tok] {
			seen[tok] = true
			topicTokens = append(topicTokens, tok)
		}
	}
	var out []QuerySuggestion
	for _, p := range patterns {
		if contentType != "" && p.ContentType != contentType {
			continue
		}
		if p.AvgQuality < cacheAdmissionQuality {
			continue
		}
		// Whole-token matching; "sleep" must not match "sleepless".
		haystack := map[string]bool{}
		for _, tok := range strings.Fields(model.NormalizeText(p.Query)) {
			haystack[tok] = true
		}
		for _, s := range p.Subjects {
			for _, tok := range strings.Fields(s) {
				haystack[tok] = true
			}
		}
		var overlap int
		for _, tok := range topicTokens {
			if haystack[tok] {
				overlap++
			}
		}
		out = append(out, QuerySuggestion{
			Query:   p.Query,
			Hash:    p.Hash,
			Score:   p.AvgQuality + 5*float64(overlap),
			Quality: p.AvgQuality,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Hash < out[j].Hash
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// appendBounded appends value if absent, keeping only the most recent
// bound entries.
func appendBounded(list []string, value string, bound int) []string {
	for i, existing := range list {
		if existing == value {
			list = append(append(list[:i:i], list[i+1:]...), value)
			return list
		}
	}
	list = append(list, value)
	if len(list) > bound {
		list = list[len(list)-bound:]
	}
	return list
}
