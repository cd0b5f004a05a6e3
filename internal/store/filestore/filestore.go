// Package filestore persists document collections as JSON files, one file
// per collection, in a single data directory.
//
// Durability contract: before a collection file is overwritten, the prior
// bytes are copied to a sibling .bak file. The new content is written to a
// temp file and renamed into place; if anything fails after the backup was
// taken, the backup is restored so the previous state is never lost.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randysalars/dreamweaving/internal/store"
)

// Backend is a JSON-file implementation of store.Backend.
type Backend struct {
	dir string
}

// New creates the data directory if needed and returns a Backend.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create data dir: %w", err)
	}
	return &Backend{dir: dir}, nil
}

// Dir returns the data directory.
func (b *Backend) Dir() string { return b.dir }

func (b *Backend) path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

// Load reads and decodes a collection file into v.
func (b *Backend) Load(_ context.Context, collection string, v any) error {
	data, err := os.ReadFile(b.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return store.ErrNoCollection
		}
		return fmt.Errorf("filestore: read %s: %w", collection, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("filestore: decode %s: %w", collection, err)
	}
	return nil
}

// Save encodes v and overwrites the collection file, backing up the prior
// state first and restoring it on failure.
func (b *Backend) Save(_ context.Context, collection string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", collection, err)
	}

	path := b.path(collection)
	backupPath := path + ".bak"

	// Back up the prior state before touching the live file.
	prior, readErr := os.ReadFile(path)
	hadPrior := readErr == nil
	if hadPrior {
		if err := os.WriteFile(backupPath, prior, 0o640); err != nil {
			return fmt.Errorf("filestore: write backup for %s: %w", collection, err)
		}
	}

	if err := b.writeAtomic(path, data); err != nil {
		if hadPrior {
			if restoreErr := os.WriteFile(path, prior, 0o640); restoreErr != nil {
				return fmt.Errorf("filestore: write %s failed (%v) and restore failed: %w",
					collection, err, restoreErr)
			}
		}
		return fmt.Errorf("filestore: write %s: %w", collection, err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory and renames
// it into place.
func (b *Backend) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Close is a no-op for the file backend.
func (b *Backend) Close() error { return nil }
