package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/notify"
)

const selectPatients = `
	SELECT id, family_name, given_name, sex, birth_date, profession, email, phone_number
	FROM patients
`

// COLLATE "C" para ordenar por bytes igual que los otros stores.
const orderPatients = ` ORDER BY family_name COLLATE "C" ASC, given_name COLLATE "C" ASC, id ASC`

type PatientsRepo struct {
	db  *sql.DB
	hub *notify.Hub
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db, hub: notify.NewHub()}
}

func (r *PatientsRepo) List(ctx context.Context) ([]patients.Patient, error) {
	return r.Search(ctx, patients.Filter{})
}

func (r *PatientsRepo) Search(ctx context.Context, filter patients.Filter) ([]patients.Patient, error) {
	var b strings.Builder
	b.WriteString(selectPatients)

	args := make([]any, 0, 4)
	argN := 1
	var where []string

	if filter.FamilyName != "" {
		where = append(where, fmt.Sprintf("strpos(lower(family_name), lower($%d)) > 0", argN))
		args = append(args, filter.FamilyName)
		argN++
	}
	if filter.GivenName != "" {
		where = append(where, fmt.Sprintf("strpos(lower(given_name), lower($%d)) > 0", argN))
		args = append(args, filter.GivenName)
		argN++
	}
	if filter.Sex != nil {
		where = append(where, fmt.Sprintf("sex = $%d", argN))
		args = append(args, string(*filter.Sex))
		argN++
	}
	if filter.BirthDate != nil {
		where = append(where, fmt.Sprintf("birth_date = $%d", argN))
		args = append(args, patients.ToDate(*filter.BirthDate))
		argN++
	}

	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(orderPatients)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]patients.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PatientsRepo) Insert(ctx context.Context, p patients.Patient) (patients.Patient, error) {
	p.BirthDate = patients.ToDate(p.BirthDate)

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO patients (
			family_name, given_name, sex, birth_date,
			profession, email, phone_number
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`,
		p.FamilyName,
		p.GivenName,
		string(p.Sex),
		p.BirthDate,
		p.Profession,
		p.Email,
		p.PhoneNumber,
	).Scan(&p.ID)
	if err != nil {
		return patients.Patient{}, err
	}

	r.hub.Notify()
	return p, nil
}

// Update no falla si el id no existe.
func (r *PatientsRepo) Update(ctx context.Context, p patients.Patient) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET
			family_name = $2,
			given_name = $3,
			sex = $4,
			birth_date = $5,
			profession = $6,
			email = $7,
			phone_number = $8
		WHERE id = $1
	`,
		p.ID,
		p.FamilyName,
		p.GivenName,
		string(p.Sex),
		patients.ToDate(p.BirthDate),
		p.Profession,
		p.Email,
		p.PhoneNumber,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.hub.Notify()
	}
	return nil
}

func (r *PatientsRepo) Delete(ctx context.Context, p patients.Patient) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.hub.Notify()
	}
	return nil
}

func (r *PatientsRepo) GetByID(ctx context.Context, id int64) (patients.Patient, error) {
	row := r.db.QueryRowContext(ctx, selectPatients+` WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return patients.Patient{}, patients.ErrNotFound
		}
		return patients.Patient{}, err
	}
	return p, nil
}

func (r *PatientsRepo) ExistsByNameAndBirthdate(ctx context.Context, familyName, givenName string, birthDate time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patients
			WHERE lower(btrim(family_name)) = $1
			  AND lower(btrim(given_name)) = $2
			  AND birth_date = $3
		)
	`,
		patients.NormalizeName(familyName),
		patients.NormalizeName(givenName),
		patients.ToDate(birthDate),
	).Scan(&exists)
	return exists, err
}

// Subscribe solo ve los cambios hechos por este proceso.
func (r *PatientsRepo) Subscribe() (<-chan struct{}, func()) {
	return r.hub.Subscribe()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(s scanner) (patients.Patient, error) {
	var p patients.Patient
	var sex string
	var bd time.Time
	if err := s.Scan(
		&p.ID,
		&p.FamilyName,
		&p.GivenName,
		&sex,
		&bd,
		&p.Profession,
		&p.Email,
		&p.PhoneNumber,
	); err != nil {
		return patients.Patient{}, err
	}

	p.Sex = patients.Sex(sex)
	// ojo: birth_date es date, pgx lo mapea a medianoche UTC
	p.BirthDate = patients.ToDate(bd)
	return p, nil
}
