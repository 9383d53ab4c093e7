package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/logger"
)

//go:embed 0001_initial.sql
var mig0001 string

// Migrations returns all schema migrations for the sync store database,
// in application order.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			ID:  "0001_initial.sql",
			SQL: mig0001,
		},
	}
}

// RunMigrations runs all migrations for the sync store database at dbPath.
func RunMigrations(dbPath string) error {
	return db.RunMigrations(dbPath, Migrations())
}

// RunMigrationsDB runs all migrations against an already-open handle.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB) error {
	return db.RunMigrationsDB(log, sqlDB, Migrations())
}
