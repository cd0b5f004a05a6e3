// Package sqlitestore persists document collections in an embedded sqlite
// database. Each collection is one row in the documents table; every
// overwrite first copies the prior row into documents_backup inside the
// same transaction, preserving the backup-before-overwrite contract.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/randysalars/dreamweaving/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE TABLE IF NOT EXISTS documents_backup (
	name       TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Backend is a sqlite implementation of store.Backend.
type Backend struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema.
func New(ctx context.Context, path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// One writer at a time; the engine's single-writer model never needs more.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: ensure schema: %w", err)
	}
	return &Backend{db: db}, nil
}

// Load reads and decodes one collection document into v.
func (b *Backend) Load(ctx context.Context, collection string, v any) error {
	var doc string
	err := b.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE name = ?`, collection,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNoCollection
		}
		return fmt.Errorf("sqlitestore: load %s: %w", collection, err)
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("sqlitestore: decode %s: %w", collection, err)
	}
	return nil
}

// Save replaces one collection document transactionally, copying the
// prior version into documents_backup first.
func (b *Backend) Save(ctx context.Context, collection string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode %s: %w", collection, err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin save %s: %w", collection, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_backup (name, doc, updated_at)
		 SELECT name, doc, updated_at FROM documents WHERE name = ?
		 ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		collection,
	); err != nil {
		return fmt.Errorf("sqlitestore: back up %s: %w", collection, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, doc, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		 ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		collection, string(data),
	); err != nil {
		return fmt.Errorf("sqlitestore: write %s: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit %s: %w", collection, err)
	}
	return nil
}

// Close shuts down the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}
