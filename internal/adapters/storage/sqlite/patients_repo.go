package sqlite

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
	var where []string
	var args []any

	if filter.FamilyName != "" {
		where = append(where, "instr(roster_fold(family_name), roster_fold(?)) > 0")
		args = append(args, filter.FamilyName)
	}
	if filter.GivenName != "" {
		where = append(where, "instr(roster_fold(given_name), roster_fold(?)) > 0")
		args = append(args, filter.GivenName)
	}
	if filter.Sex != nil {
		where = append(where, "sex = ?")
		args = append(args, string(*filter.Sex))
	}
	if filter.BirthDate != nil {
		where = append(where, "birth_date = ?")
		args = append(args, patients.FormatDate(*filter.BirthDate))
	}

	var b strings.Builder
	b.WriteString(selectPatients)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY family_name ASC, given_name ASC, id ASC")

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

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (
			family_name, given_name, sex, birth_date,
			profession, email, phone_number
		) VALUES (?,?,?,?,?,?,?)
	`,
		p.FamilyName,
		p.GivenName,
		string(p.Sex),
		patients.FormatDate(p.BirthDate),
		p.Profession,
		p.Email,
		p.PhoneNumber,
	)
	if err != nil {
		return patients.Patient{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return patients.Patient{}, err
	}
	p.ID = id

	r.hub.Notify()
	return p, nil
}

// Update no falla si el id no existe.
func (r *PatientsRepo) Update(ctx context.Context, p patients.Patient) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET
			family_name = ?,
			given_name = ?,
			sex = ?,
			birth_date = ?,
			profession = ?,
			email = ?,
			phone_number = ?
		WHERE id = ?
	`,
		p.FamilyName,
		p.GivenName,
		string(p.Sex),
		patients.FormatDate(p.BirthDate),
		p.Profession,
		p.Email,
		p.PhoneNumber,
		p.ID,
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.hub.Notify()
	}
	return nil
}

func (r *PatientsRepo) GetByID(ctx context.Context, id int64) (patients.Patient, error) {
	row := r.db.QueryRowContext(ctx, selectPatients+` WHERE id = ?`, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return patients.Patient{}, patients.ErrNotFound
		}
		return patients.Patient{}, err
	}
	return p, nil
}

// ExistsByNameAndBirthdate normaliza del lado Go y compara contra roster_key.
func (r *PatientsRepo) ExistsByNameAndBirthdate(ctx context.Context, familyName, givenName string, birthDate time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patients
			WHERE roster_key(family_name) = ?
			  AND roster_key(given_name) = ?
			  AND birth_date = ?
		)
	`,
		patients.NormalizeName(familyName),
		patients.NormalizeName(givenName),
		patients.FormatDate(birthDate),
	).Scan(&exists)
	return exists, err
}

func (r *PatientsRepo) Subscribe() (<-chan struct{}, func()) {
	return r.hub.Subscribe()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(s scanner) (patients.Patient, error) {
	var p patients.Patient
	var sex, birth string
	if err := s.Scan(
		&p.ID,
		&p.FamilyName,
		&p.GivenName,
		&sex,
		&birth,
		&p.Profession,
		&p.Email,
		&p.PhoneNumber,
	); err != nil {
		return patients.Patient{}, err
	}

	p.Sex = patients.Sex(sex)
	bd, err := patients.ParseDate(birth)
	if err != nil {
		return patients.Patient{}, fmt.Errorf("patient %d: %w", p.ID, err)
	}
	p.BirthDate = bd
	return p, nil
}
