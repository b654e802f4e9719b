// Package train implements the Training Dispatcher and the Adapter
// Registry: the dispatcher fires a batch file at the fine-tuning trainer's
// HTTP contract and records the resulting adapter; the registry tracks the
// current adapter plus full history, durable across restarts.
//
// The trainer's request/response contract is grounded on
// original_source/infra/workflow.py (POST {data_path} to
// /train-and-update, GET /current-adapter). The registry's mutex-guarded
// map-of-state-with-"Locked"-suffixed-helpers shape is grounded on
// server/service/registry.go's ServiceRegistry. Durability is grounded on
// database/service.go and database/schema.go's CREATE TABLE IF NOT
// EXISTS + upsert style, via jackc/pgx/v5's database/sql driver.
package train

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"ctrain/pipeline"
)

const createAdapterTableSQL = `
	CREATE TABLE IF NOT EXISTS adapters (
		name TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		batch_path TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_adapters_current ON adapters(is_current);
`

// Registry tracks the current adapter and full adapter history, both
// in-memory (the fast path) and durably in Postgres (the recovery path
// consulted only at startup).
type Registry struct {
	mu      sync.RWMutex
	current *pipeline.Adapter
	history []pipeline.Adapter

	db  *sql.DB
	log zerolog.Logger
}

// NewRegistry opens the database connection, bootstraps the schema, and
// seeds the in-memory state from whatever was last marked current.
func NewRegistry(ctx context.Context, databaseURL string, log zerolog.Logger) (*Registry, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createAdapterTableSQL); err != nil {
		return nil, fmt.Errorf("create adapters table: %w", err)
	}

	r := &Registry{db: db, log: log}
	if err := r.loadLocked(ctx); err != nil {
		return nil, fmt.Errorf("load adapter history: %w", err)
	}
	return r, nil
}

func (r *Registry) loadLocked(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT name, path, batch_path, created_at, is_current FROM adapters ORDER BY created_at ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	for rows.Next() {
		var a pipeline.Adapter
		var isCurrent bool
		if err := rows.Scan(&a.Name, &a.Path, &a.BatchPath, &a.CreatedAt, &isCurrent); err != nil {
			return err
		}
		r.history = append(r.history, a)
		if isCurrent {
			adapter := a
			r.current = &adapter
		}
	}
	return rows.Err()
}

// Current returns the adapter currently in use, or nil if none has been
// trained yet.
func (r *Registry) Current() *pipeline.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil
	}
	cp := *r.current
	return &cp
}

// History returns every adapter ever recorded, oldest first. Adapters are
// never deleted from history even once superseded.
// TODO: add an operator-triggered prune for adapter artifacts once a
// retention policy for old fine-tunes exists.
func (r *Registry) History() []pipeline.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]pipeline.Adapter, len(r.history))
	copy(out, r.history)
	return out
}

// Record stores a newly trained adapter and makes it current, both
// in-memory and durably.
func (r *Registry) Record(ctx context.Context, a pipeline.Adapter) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE adapters SET is_current = FALSE`); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO adapters (name, path, batch_path, created_at, is_current)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (name) DO UPDATE SET
			path = EXCLUDED.path,
			batch_path = EXCLUDED.batch_path,
			created_at = EXCLUDED.created_at,
			is_current = TRUE
	`, a.Name, a.Path, a.BatchPath, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert adapter: %w", err)
	}

	r.mu.Lock()
	r.history = append(r.history, a)
	cp := a
	r.current = &cp
	r.mu.Unlock()

	r.log.Info().Str("adapter", a.Name).Str("path", a.Path).Msg("adapter recorded as current")
	return nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// DropSchema drops the adapters table, grounded on
// database/schema.go's DropSchema.
func (r *Registry) DropSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS adapters CASCADE`)
	return err
}
