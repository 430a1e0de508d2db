package migrations

import (
	"context"

	"orderflow-edge-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the PostgreSQL schema, one file per Exec,
// and returns the files applied. Migrations are idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	migs, err := Postgres.Load()
	if err != nil {
		return nil, err
	}
	return apply(migs, func(stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
}
