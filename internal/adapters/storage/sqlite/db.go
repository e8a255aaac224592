package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"

	"patient-roster/internal/adapters/storage/migrate"
	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/logger"
)

// Funciones Go registradas en SQLite: el mismo plegado que usa patients.Matches.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("roster_fold", 1, foldFunc(patients.Fold))
	sqlite.MustRegisterDeterministicScalarFunction("roster_key", 1, foldFunc(patients.NormalizeName))
}

func foldFunc(fn func(string) string) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			return fn(v), nil
		case []byte:
			return fn(string(v)), nil
		default:
			return nil, fmt.Errorf("expected text argument, got %T", v)
		}
	}
}

// Open abre (o crea) la base SQLite en path y aplica las migraciones pendientes.
func Open(ctx context.Context, path string, log logger.Logger) (*sql.DB, error) {
	db, err := Connect(ctx, path)
	if err != nil {
		return nil, err
	}

	if _, err := NewMigrator(db, log).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Connect abre la base sin tocar el esquema.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "patient_roster.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// una sola conexión: lectores y escritores se serializan en el store
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return db, nil
}

func NewMigrator(db *sql.DB, log logger.Logger) *migrate.Migrator {
	return migrate.New(db, migrate.SQLite, Migrations, log)
}
