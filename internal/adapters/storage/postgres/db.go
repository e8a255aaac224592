package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"patient-roster/internal/adapters/storage/migrate"
	"patient-roster/internal/platform/logger"
)

// Open abre una conexión pool a Postgres usando pgx (database/sql) y aplica
// las migraciones pendientes.
func Open(ctx context.Context, dsn string, log logger.Logger) (*sql.DB, error) {
	db, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if _, err := NewMigrator(db, log).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Connect abre el pool sin aplicar migraciones.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

func NewMigrator(db *sql.DB, log logger.Logger) *migrate.Migrator {
	return migrate.New(db, migrate.Postgres, Migrations, log)
}
