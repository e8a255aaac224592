package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/notify"
)

type patientRepo struct {
	mu     sync.RWMutex
	byID   map[int64]patients.Patient
	nextID int64
	hub    *notify.Hub
}

func NewPatientRepo() patients.Repository {
	return &patientRepo{
		byID: make(map[int64]patients.Patient),
		hub:  notify.NewHub(),
	}
}

func (r *patientRepo) List(ctx context.Context) ([]patients.Patient, error) {
	return r.Search(ctx, patients.Filter{})
}

func (r *patientRepo) Search(ctx context.Context, filter patients.Filter) ([]patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]patients.Patient, 0, len(r.byID))
	for _, p := range r.byID {
		if patients.Matches(p, filter) {
			out = append(out, p)
		}
	}

	// Mismo orden que el store SQL: apellido, nombre, id
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FamilyName != b.FamilyName {
			return a.FamilyName < b.FamilyName
		}
		if a.GivenName != b.GivenName {
			return a.GivenName < b.GivenName
		}
		return a.ID < b.ID
	})

	return out, nil
}

func (r *patientRepo) Insert(ctx context.Context, p patients.Patient) (patients.Patient, error) {
	if strings.TrimSpace(p.FamilyName) == "" || strings.TrimSpace(p.GivenName) == "" {
		return patients.Patient{}, errors.New("patient names required")
	}

	r.mu.Lock()
	r.nextID++
	p.ID = r.nextID
	p.BirthDate = patients.ToDate(p.BirthDate)
	r.byID[p.ID] = p
	r.mu.Unlock()

	r.hub.Notify()
	return p, nil
}

// Update no falla si el id no existe (igual que los stores SQL).
func (r *patientRepo) Update(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	_, exists := r.byID[p.ID]
	if exists {
		p.BirthDate = patients.ToDate(p.BirthDate)
		r.byID[p.ID] = p
	}
	r.mu.Unlock()

	if exists {
		r.hub.Notify()
	}
	return nil
}

func (r *patientRepo) Delete(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	_, exists := r.byID[p.ID]
	delete(r.byID, p.ID)
	r.mu.Unlock()

	if exists {
		r.hub.Notify()
	}
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id int64) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return p, nil
}

func (r *patientRepo) ExistsByNameAndBirthdate(ctx context.Context, familyName, givenName string, birthDate time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	probe := patients.Patient{FamilyName: familyName, GivenName: givenName, BirthDate: birthDate}
	for _, p := range r.byID {
		if patients.SameIdentity(p, probe) {
			return true, nil
		}
	}
	return false, nil
}

func (r *patientRepo) Subscribe() (<-chan struct{}, func()) {
	return r.hub.Subscribe()
}
