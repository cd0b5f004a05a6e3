// Package pgstore persists document collections in Postgres, for
// deployments where the feedback engine runs next to other services that
// already operate a database. Same shape as sqlitestore: one jsonb row
// per collection, prior version copied to documents_backup in the same
// transaction before every overwrite.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randysalars/dreamweaving/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS documents_backup (
	name       TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// Backend is a Postgres implementation of store.Backend.
type Backend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to Postgres, pings it, and ensures the schema.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return &Backend{pool: pool, logger: logger}, nil
}

// Load reads and decodes one collection document into v.
func (b *Backend) Load(ctx context.Context, collection string, v any) error {
	var doc []byte
	err := b.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE name = $1`, collection,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNoCollection
		}
		return fmt.Errorf("pgstore: load %s: %w", collection, err)
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("pgstore: decode %s: %w", collection, err)
	}
	return nil
}

// Save replaces one collection document transactionally.
func (b *Backend) Save(ctx context.Context, collection string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pgstore: encode %s: %w", collection, err)
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin save %s: %w", collection, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents_backup (name, doc, updated_at)
		 SELECT name, doc, updated_at FROM documents WHERE name = $1
		 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		collection,
	); err != nil {
		return fmt.Errorf("pgstore: back up %s: %w", collection, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (name, doc, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		collection, data,
	); err != nil {
		return fmt.Errorf("pgstore: write %s: %w", collection, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit %s: %w", collection, err)
	}
	return nil
}

// Close shuts down the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
