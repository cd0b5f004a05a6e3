package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randysalars/dreamweaving/internal/store"
)

type payload struct {
	Items []string `json:"items"`
}

func TestLoadMissingCollection(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)

	var p payload
	err = b.Load(context.Background(), "outcomes", &p)
	assert.ErrorIs(t, err, store.ErrNoCollection)
}

func TestSaveRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "outcomes", payload{Items: []string{"a", "b"}}))

	var got payload
	require.NoError(t, b.Load(ctx, "outcomes", &got))
	assert.Equal(t, []string{"a", "b"}, got.Items)
}

func TestSaveBacksUpPriorState(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "outcomes", payload{Items: []string{"v1"}}))

	// First write has nothing to back up.
	_, err = os.Stat(filepath.Join(dir, "outcomes.json.bak"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, b.Save(ctx, "outcomes", payload{Items: []string{"v2"}}))

	backup, err := os.ReadFile(filepath.Join(dir, "outcomes.json.bak"))
	require.NoError(t, err)
	assert.Contains(t, string(backup), "v1")

	live, err := os.ReadFile(filepath.Join(dir, "outcomes.json"))
	require.NoError(t, err)
	assert.Contains(t, string(live), "v2")
}

func TestSaveCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
