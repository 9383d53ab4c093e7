package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	internalcommon "github.com/goran-ethernal/EventSyncor/internal/common"
	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/logger"
	"github.com/goran-ethernal/EventSyncor/internal/metrics"
	"github.com/goran-ethernal/EventSyncor/internal/store/migrations"
	"github.com/goran-ethernal/EventSyncor/pkg/config"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
)

// Compile-time check to ensure Store implements the public Store interface.
var _ pkgstore.Store = (*Store)(nil)

// Store is the SQLite-backed sync store. All mutation flows through
// immediate transactions on a single handle; the maintenance coordinator
// serializes operations against VACUUM windows.
type Store struct {
	db          *sql.DB
	dbPath      string
	log         *logger.Logger
	maintenance db.Maintenance
}

// NewStore creates a sync store on an existing database handle.
func NewStore(sqlDB *sql.DB, dbPath string, log *logger.Logger, maintenance db.Maintenance) *Store {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	s := &Store{
		db:          sqlDB,
		dbPath:      dbPath,
		log:         log.WithComponent(internalcommon.ComponentSyncStore),
		maintenance: maintenance,
	}

	metrics.ComponentHealthSet(internalcommon.ComponentSyncStore, true)

	s.log.Info("sync store initialized")

	return s
}

// NewStoreFromConfig opens the database described by cfg and wires a
// maintenance coordinator if one is configured.
func NewStoreFromConfig(cfg config.StoreConfig, log *logger.Logger) (*Store, error) {
	sqlDB, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	maintenance := db.NewMaintenanceCoordinator(cfg.DB.Path, sqlDB, cfg.Maintenance, log)

	return NewStore(sqlDB, cfg.DB.Path, log, maintenance), nil
}

// MigrateUp applies all pending schema migrations.
func (s *Store) MigrateUp() error {
	if err := migrations.RunMigrationsDB(s.log, s.db); err != nil {
		metrics.ComponentHealthSet(internalcommon.ComponentMigrations, false)
		return err
	}

	metrics.ComponentHealthSet(internalcommon.ComponentMigrations, true)
	return nil
}

// Kill releases the database handle.
func (s *Store) Kill() error {
	metrics.ComponentHealthSet(internalcommon.ComponentSyncStore, false)

	if err := s.maintenance.Stop(); err != nil {
		s.log.Warnf("failed to stop maintenance: %v", err)
	}

	return s.db.Close()
}

// DB returns the database handle for use by other components.
func (s *Store) DB() *sql.DB {
	return s.db
}

// beginTx opens an immediate write transaction under the maintenance
// operation lock. The returned done function must be deferred: it rolls
// the transaction back unless Commit ran, and releases the lock.
func (s *Store) beginTx(ctx context.Context) (*sql.Tx, func(), error) {
	unlock := s.maintenance.AcquireOperationLock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", db.ClassifyError(err))
	}

	done := func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
		unlock()
	}

	return tx, done, nil
}
