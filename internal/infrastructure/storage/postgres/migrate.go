package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"stockflow/pkg/logger"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the embedded schema files in name order. Each file runs
// once, in its own transaction, and is recorded in sys_schema_migrations.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sys_schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	txm := NewTxManager(pool, DefaultTxOptions())
	for _, name := range names {
		body, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		applied := false
		err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
			q := txm.GetQuerier(ctx)
			tag, err := q.Exec(ctx, `INSERT INTO sys_schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			if _, err := q.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			applied = true
			return nil
		})
		if err != nil {
			return err
		}
		if applied {
			logger.Info(ctx, "migration applied", "name", name)
		}
	}
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
