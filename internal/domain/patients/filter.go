package patients

import (
	"strings"
	"time"
)

// Filter es una especificación parcial: los campos vacíos no restringen.
type Filter struct {
	FamilyName string
	GivenName  string
	Sex        *Sex
	BirthDate  *time.Time
}

func (f Filter) HasActiveFilters() bool {
	return f.FamilyName != "" ||
		f.GivenName != "" ||
		f.Sex != nil ||
		f.BirthDate != nil
}

// Matches evalúa el filtro a nivel aplicación. Es la referencia: las búsquedas
// SQL de los adapters tienen que devolver exactamente lo mismo.
func Matches(p Patient, f Filter) bool {
	if f.FamilyName != "" && !containsFold(p.FamilyName, f.FamilyName) {
		return false
	}
	if f.GivenName != "" && !containsFold(p.GivenName, f.GivenName) {
		return false
	}
	if f.Sex != nil && p.Sex != *f.Sex {
		return false
	}
	if f.BirthDate != nil && !ToDate(p.BirthDate).Equal(ToDate(*f.BirthDate)) {
		return false
	}
	return true
}

// Apply devuelve una copia con los pacientes que cumplen f, conservando el orden.
func Apply(items []Patient, f Filter) []Patient {
	out := make([]Patient, 0, len(items))
	for _, p := range items {
		if Matches(p, f) {
			out = append(out, p)
		}
	}
	return out
}

// Fold es el plegado de mayúsculas compartido con las funciones registradas en SQLite.
func Fold(s string) string {
	return strings.ToLower(s)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// SexPtr y DatePtr ayudan a armar filtros literales.
func SexPtr(s Sex) *Sex { return &s }

func DatePtr(t time.Time) *time.Time {
	d := ToDate(t)
	return &d
}
