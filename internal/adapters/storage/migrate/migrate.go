// Package migrate aplica migraciones ordenadas y aditivas sobre database/sql.
// Cada store define sus pasos; el registro vive en schema_migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"patient-roster/internal/platform/logger"
)

const Table = "schema_migrations"

// Migration es un paso idempotente. Up corre dentro de una transacción.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

// Status indica si una migración ya fue aplicada.
type Status struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Dialect cubre las diferencias de SQL entre motores.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
}

var (
	SQLite   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
)

type Migrator struct {
	db         *sql.DB
	dialect    Dialect
	migrations []Migration
	log        logger.Logger
}

func New(db *sql.DB, dialect Dialect, migrations []Migration, log logger.Logger) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{db: db, dialect: dialect, migrations: sorted, log: log}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+Table+` (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create %s: %w", Table, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM `+Table)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at string
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		t, _ := time.Parse(time.RFC3339, at)
		out[v] = t
	}
	return out, rows.Err()
}

// Up aplica las migraciones pendientes en orden y devuelve cuántas corrió.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		m.log.Info("migration applied", map[string]any{
			"dialect": m.dialect.Name,
			"version": mig.Version,
			"name":    mig.Name,
		})
		count++
	}
	return count, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := mig.Up(ctx, tx); err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (version, name, applied_at) VALUES (%s, %s, %s)`,
		Table, m.dialect.Placeholder(1), m.dialect.Placeholder(2), m.dialect.Placeholder(3))
	if _, err := tx.ExecContext(ctx, q, mig.Version, mig.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// Status lista todas las migraciones conocidas con su estado.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := Status{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			st.Applied = true
			at := at
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
