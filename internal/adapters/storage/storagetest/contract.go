// Package storagetest contiene el contrato común que deben cumplir todos los
// stores de pacientes. Cada adapter lo corre desde sus propios tests.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-roster/internal/domain/patients"
)

// Factory devuelve un store vacío y listo para usar.
type Factory func(t *testing.T) patients.Repository

// Seed es el set de pacientes usado por el contrato.
func Seed() []patients.Patient {
	return []patients.Patient{
		{FamilyName: "Mballa", GivenName: "Jean", Sex: patients.SexMale, BirthDate: patients.Date(1980, time.May, 1), Profession: "Enseignant", Email: "jean@x.com", PhoneNumber: "+237 612345678"},
		{FamilyName: "Ngo Mbeng", GivenName: "Aline", Sex: patients.SexFemale, BirthDate: patients.Date(1992, time.January, 12), Profession: "Infirmière", Email: "aline@x.com", PhoneNumber: "+237 699887766"},
		{FamilyName: "Étoa", GivenName: "Éric", Sex: patients.SexMale, BirthDate: patients.Date(1975, time.December, 3), Profession: "Avocat", Email: "eric@x.com", PhoneNumber: "+33 612345678"},
		{FamilyName: "Mballa", GivenName: "Anne", Sex: patients.SexFemale, BirthDate: patients.Date(1980, time.May, 1), Profession: "Médecin", Email: "anne@x.com", PhoneNumber: "+237 677001122"},
		{FamilyName: "Abena", GivenName: "Paul_50%", Sex: patients.SexMale, BirthDate: patients.Date(2001, time.July, 30), Profession: "Étudiant", Email: "paul@x.com", PhoneNumber: "+237 655443322"},
	}
}

// Filters cubre cada campo por separado y combinado.
func Filters() []patients.Filter {
	return []patients.Filter{
		{},
		{FamilyName: "mba"},
		{FamilyName: "MBALLA"},
		{GivenName: "an"},
		{FamilyName: "éto"},
		{GivenName: "_50%"},
		{GivenName: "%"},
		{Sex: patients.SexPtr(patients.SexFemale)},
		{BirthDate: patients.DatePtr(patients.Date(1980, time.May, 1))},
		{FamilyName: "mballa", Sex: patients.SexPtr(patients.SexMale), BirthDate: patients.DatePtr(patients.Date(1980, time.May, 1))},
		{FamilyName: "nobody"},
	}
}

func seed(t *testing.T, repo patients.Repository) []patients.Patient {
	t.Helper()
	ctx := context.Background()
	out := make([]patients.Patient, 0)
	for _, p := range Seed() {
		saved, err := repo.Insert(ctx, p)
		require.NoError(t, err)
		out = append(out, saved)
	}
	return out
}

// Run ejecuta el contrato completo contra el store que produce newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("InsertAssignsIDsAndListOrders", func(t *testing.T) {
		repo := newRepo(t)
		saved := seed(t, repo)

		seen := map[int64]bool{}
		for _, p := range saved {
			require.NotZero(t, p.ID)
			require.False(t, seen[p.ID], "duplicate id %d", p.ID)
			seen[p.ID] = true
		}

		items, err := repo.List(context.Background())
		require.NoError(t, err)
		require.Len(t, items, len(saved))

		got := make([]string, 0, len(items))
		for _, p := range items {
			got = append(got, p.FamilyName+"/"+p.GivenName)
		}
		assert.Equal(t, []string{"Abena/Paul_50%", "Mballa/Anne", "Mballa/Jean", "Ngo Mbeng/Aline", "Étoa/Éric"}, got)
	})

	t.Run("InsertedPatientListedOnce", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		p, err := repo.Insert(context.Background(), patients.Patient{
			FamilyName: "Kamga", GivenName: "Luc", Sex: patients.SexMale,
			BirthDate: patients.Date(1966, time.March, 9), Profession: "Chauffeur",
			Email: "luc@x.com", PhoneNumber: "+237 611111111",
		})
		require.NoError(t, err)

		items, err := repo.List(context.Background())
		require.NoError(t, err)

		count, pos := 0, -1
		for i, it := range items {
			if it.ID == p.ID {
				count++
				pos = i
			}
		}
		require.Equal(t, 1, count)
		assert.Equal(t, "Abena", items[pos-1].FamilyName)
		assert.Equal(t, "Mballa", items[pos+1].FamilyName)
	})

	t.Run("FieldsRoundTrip", func(t *testing.T) {
		repo := newRepo(t)
		saved := seed(t, repo)

		got, err := repo.GetByID(context.Background(), saved[0].ID)
		require.NoError(t, err)
		assert.Equal(t, saved[0].FamilyName, got.FamilyName)
		assert.Equal(t, saved[0].Sex, got.Sex)
		assert.True(t, saved[0].BirthDate.Equal(got.BirthDate), "birth date %v != %v", saved[0].BirthDate, got.BirthDate)
		assert.Equal(t, saved[0].PhoneNumber, got.PhoneNumber)
		assert.Equal(t, saved[0].Email, got.Email)
		assert.Equal(t, saved[0].Profession, got.Profession)
	})

	t.Run("SearchAgreesWithMatches", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		ctx := context.Background()

		all, err := repo.List(ctx)
		require.NoError(t, err)

		for _, f := range Filters() {
			want := patients.Apply(all, f)
			got, err := repo.Search(ctx, f)
			require.NoError(t, err)
			require.Equal(t, ids(want), ids(got), "filter %+v", f)
		}
	})

	t.Run("ExistsByNameAndBirthdate", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		ctx := context.Background()

		ok, err := repo.ExistsByNameAndBirthdate(ctx, "  mBALLA ", "jean ", patients.Date(1980, time.May, 1))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ExistsByNameAndBirthdate(ctx, "Mballa", "Jean", patients.Date(1980, time.May, 2))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ExistsByNameAndBirthdate(ctx, "Mball", "Jean", patients.Date(1980, time.May, 1))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		repo := newRepo(t)
		saved := seed(t, repo)
		ctx := context.Background()

		p := saved[0]
		p.Profession = "Directeur"
		p.PhoneNumber = "+237 600000000"
		require.NoError(t, repo.Update(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Directeur", got.Profession)
		assert.Equal(t, "+237 600000000", got.PhoneNumber)

		ghost := p
		ghost.ID = 987654
		require.NoError(t, repo.Update(ctx, ghost), "update of a missing id is a no-op")
		_, err = repo.GetByID(ctx, ghost.ID)
		assert.True(t, errors.Is(err, patients.ErrNotFound))

		require.NoError(t, repo.Delete(ctx, p))
		_, err = repo.GetByID(ctx, p.ID)
		assert.True(t, errors.Is(err, patients.ErrNotFound))

		items, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, items, len(saved)-1)
	})

	t.Run("SubscribeSignalsWrites", func(t *testing.T) {
		repo := newRepo(t)
		ch, cancel := repo.Subscribe()
		defer cancel()

		_, err := repo.Insert(context.Background(), Seed()[0])
		require.NoError(t, err)

		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected change signal after insert")
		}
	})
}

func ids(items []patients.Patient) []int64 {
	out := make([]int64, 0, len(items))
	for _, p := range items {
		out = append(out, p.ID)
	}
	return out
}
