package persist

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// The document store schema ships embedded so a deployed binary always
// carries the migration history matching its own code.
//
//go:embed migrations/*.sql
var schemaFS embed.FS

// RunMigrations brings the documents, revisions and journal tables up to
// the schema this build expects. Safe to run on every boot; applied
// versions are skipped.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(schemaFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply document schema: %w", err)
	}

	return nil
}
