// Package memstore is an in-memory store.Backend for tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/randysalars/dreamweaving/internal/store"
)

// Backend keeps encoded collections in a map. It round-trips through JSON
// so tests exercise the same serialization path as the real backends.
type Backend struct {
	mu          sync.RWMutex
	collections map[string][]byte

	// FailWrites makes every Save return an error, for durability tests.
	FailWrites bool
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{collections: make(map[string][]byte)}
}

// Load decodes a stored collection into v.
func (b *Backend) Load(_ context.Context, collection string, v any) error {
	b.mu.RLock()
	data, ok := b.collections[collection]
	b.mu.RUnlock()
	if !ok {
		return store.ErrNoCollection
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("memstore: decode %s: %w", collection, err)
	}
	return nil
}

// Save encodes v and stores it. With FailWrites set, the previous state is
// kept and an error returned, mirroring the backup-restore contract.
func (b *Backend) Save(_ context.Context, collection string, v any) error {
	if b.FailWrites {
		return fmt.Errorf("memstore: write %s: injected failure", collection)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memstore: encode %s: %w", collection, err)
	}
	b.mu.Lock()
	b.collections[collection] = data
	b.mu.Unlock()
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }
