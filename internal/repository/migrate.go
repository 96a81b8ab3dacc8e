package repository

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// BIViews are the reporting views created by the embedded migrations, in
// export order.
var BIViews = []string{"ridership_summary", "delay_analysis", "performance_trends"}

// RunMigrations applies the embedded view migrations. The tables they select
// from must already exist.
// Parameters:
//   - db: raw database handle.
//   - driver: "postgres" or "sqlite".
// Returns:
//   - error: non-nil if a migration fails.
func RunMigrations(db *sql.DB, driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	dialect := "sqlite3"
	if driver == "postgres" {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
