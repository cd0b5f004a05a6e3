// Package knowledge retrieves session-design material from the knowledge
// base backing lesson generation. The query cache sits in front of it.
package knowledge

import "context"

// Result is one retrieved knowledge chunk.
type Result struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Topic   string  `json:"topic,omitempty"`
	Score   float32 `json:"score"`
}

// Retriever searches the knowledge base.
type Retriever interface {
	// Search returns up to limit chunks relevant to query, best first.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	// Healthy returns nil when the backing store is reachable.
	Healthy(ctx context.Context) error
}

// NoopRetriever satisfies Retriever with empty results, for deployments
// without a knowledge base and for tests.
type NoopRetriever struct{}

func (NoopRetriever) Search(context.Context, string, int) ([]Result, error) { return nil, nil }
func (NoopRetriever) Healthy(context.Context) error                         { return nil }
