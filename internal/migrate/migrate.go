// Package migrate applies the embedded scratch-schema migrations.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/2revoemag/psforever-password-reset/migrations"
)

// Up runs all pending migrations from the embedded filesystem against
// the given DSN. Used by the -init-schema developer flag, never on a
// live game database.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
