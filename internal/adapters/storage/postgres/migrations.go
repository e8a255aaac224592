package postgres

import (
	"context"
	"database/sql"

	"patient-roster/internal/adapters/storage/migrate"
)

var Migrations = []migrate.Migration{
	{
		Version: 1,
		Name:    "create_patients",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS patients (
					id          BIGSERIAL PRIMARY KEY,
					family_name TEXT NOT NULL,
					given_name  TEXT NOT NULL,
					sex         TEXT NOT NULL,
					birth_date  DATE NOT NULL,
					profession  TEXT NOT NULL,
					email       TEXT NOT NULL
				)
			`)
			return err
		},
	},
	{
		Version: 2,
		Name:    "add_phone_number",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `ALTER TABLE patients ADD COLUMN IF NOT EXISTS phone_number TEXT NOT NULL DEFAULT ''`)
			return err
		},
	},
	{
		Version: 3,
		Name:    "index_patients_name",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_patients_name ON patients (family_name, given_name)`)
			return err
		},
	},
}
