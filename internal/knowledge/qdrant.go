package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/randysalars/dreamweaving/internal/model"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
}

// QdrantRetriever implements Retriever against a Qdrant collection whose
// points carry "content" and "topic" payload fields with full-text indexes.
// Retrieval is payload-filtered full-text match plus client-side token
// scoring; no embeddings are involved.
type QdrantRetriever struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("knowledge: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("knowledge: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantRetriever connects to the Qdrant server via gRPC.
func NewQdrantRetriever(cfg QdrantConfig, logger *slog.Logger) (*QdrantRetriever, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantRetriever{
		client:     client,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

// Search scrolls points whose content matches the query's longest token,
// then re-scores them client-side by token overlap with the full query.
func (q *QdrantRetriever) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	tokens := strings.Fields(model.NormalizeText(query))
	if len(tokens) == 0 {
		return nil, nil
	}

	// Anchor the server-side filter on the most selective (longest) token;
	// the rest of the query is applied during re-scoring.
	anchor := tokens[0]
	for _, tok := range tokens[1:] {
		if len(tok) > len(anchor) {
			anchor = tok
		}
	}

	// Over-fetch to give the re-scorer room.
	fetchLimit := uint32(limit) * 3 //nolint:gosec // limit is bounded by callers
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchText("content", anchor),
			},
		},
		Limit:       &fetchLimit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: qdrant scroll: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		content := p.Payload["content"].GetStringValue()
		if content == "" {
			continue
		}
		r := Result{
			Content: content,
			Topic:   p.Payload["topic"].GetStringValue(),
			Score:   overlapScore(tokens, content),
		}
		if id := p.Id.GetUuid(); id != "" {
			r.ID = id
		} else {
			r.ID = strconv.FormatUint(p.Id.GetNum(), 10)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// overlapScore is the fraction of query tokens present in the content.
func overlapScore(tokens []string, content string) float32 {
	lower := model.NormalizeText(content)
	var hits int
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			hits++
		}
	}
	return float32(hits) / float32(len(tokens))
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5
// seconds; concurrent checks after expiry are deduplicated via singleflight.
func (q *QdrantRetriever) Healthy(ctx context.Context) error {
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// Use context.Background() instead of the caller's ctx because
	// singleflight reuses the first caller's context; if that caller
	// cancels, all waiters would get a stale error.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(checkCtx)
		if err != nil {
			q.storeHealthErr(fmt.Errorf("knowledge: qdrant unhealthy: %w", err))
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so we wrap it in a pointer.
func (q *QdrantRetriever) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

func (q *QdrantRetriever) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantRetriever) Close() error {
	return q.client.Close()
}
