package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randysalars/dreamweaving/internal/store"
)

type payload struct {
	Items map[string]int `json:"items"`
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestLoadMissingCollection(t *testing.T) {
	b := newTestBackend(t)

	var p payload
	err := b.Load(context.Background(), "outcomes", &p)
	assert.ErrorIs(t, err, store.ErrNoCollection)
}

func TestSaveRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "outcomes", payload{Items: map[string]int{"a": 1}}))
	require.NoError(t, b.Save(ctx, "lessons", payload{Items: map[string]int{"b": 2}}))

	var got payload
	require.NoError(t, b.Load(ctx, "outcomes", &got))
	assert.Equal(t, map[string]int{"a": 1}, got.Items)

	var got2 payload
	require.NoError(t, b.Load(ctx, "lessons", &got2))
	assert.Equal(t, map[string]int{"b": 2}, got2.Items)
}

func TestSaveKeepsBackupRow(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "outcomes", payload{Items: map[string]int{"v": 1}}))
	require.NoError(t, b.Save(ctx, "outcomes", payload{Items: map[string]int{"v": 2}}))

	var live payload
	require.NoError(t, b.Load(ctx, "outcomes", &live))
	assert.Equal(t, 2, live.Items["v"])

	var backupDoc string
	err := b.db.QueryRowContext(ctx,
		`SELECT doc FROM documents_backup WHERE name = ?`, "outcomes",
	).Scan(&backupDoc)
	require.NoError(t, err)
	assert.Contains(t, backupDoc, `"v":1`)
}
