package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// RunMigrations brings the run ledger schema up to date.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(ledgerMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate run ledger: %w", err)
	}
	return nil
}
