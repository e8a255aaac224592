package router

import (
	"context"
	"fmt"

	"patient-roster/internal/adapters/storage/memory"
	"patient-roster/internal/adapters/storage/migrate"
	"patient-roster/internal/adapters/storage/postgres"
	"patient-roster/internal/adapters/storage/sqlite"
	"patient-roster/internal/config"
	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/logger"
)

// OpenStore abre el store que indica cfg.StoreDriver. closeFn libera la conexión.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repo patients.Repository, closeFn func() error, err error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data will not survive a restart", nil)
		return memory.NewPatientRepo(), noop, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DBDSN, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("store ready", map[string]any{"driver": cfg.StoreDriver})
		return postgres.NewPatientsRepo(db), db.Close, nil

	case config.DriverSQLite, "":
		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("store ready", map[string]any{"driver": config.DriverSQLite, "path": cfg.SQLitePath})
		return sqlite.NewPatientsRepo(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenMigrator conecta sin migrar; el llamador decide si aplica o solo consulta.
func OpenMigrator(ctx context.Context, cfg *config.Config, log logger.Logger) (*migrate.Migrator, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewMigrator(db, log), db.Close, nil

	case config.DriverSQLite, "":
		db, err := sqlite.Connect(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewMigrator(db, log), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("store driver %q has no schema", cfg.StoreDriver)
	}
}
