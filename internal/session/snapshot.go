package session

import "patient-roster/internal/domain/patients"

// Dialog indica qué diálogo está al frente en un snapshot.
type Dialog string

const (
	DialogNone               Dialog = "none"
	DialogAdd                Dialog = "add"
	DialogFilters            Dialog = "filters"
	DialogEdit               Dialog = "edit"
	DialogDeleteConfirmation Dialog = "delete_confirmation"
)

// Snapshot es el estado completo que renderiza la presentación.
// Nunca se modifica una vez publicado.
type Snapshot struct {
	Version uint64

	Patients     []patients.Patient
	Loading      bool
	Filter       patients.Filter
	ErrorMessage string

	ShowAddDialog     bool
	ShowFiltersDialog bool

	ShowDeleteConfirmation bool
	PatientToDelete        *patients.Patient

	ShowEditDialog bool
	PatientToEdit  *patients.Patient
}

// Dialog devuelve el diálogo al frente. La confirmación de borrado tapa al resto.
func (s Snapshot) Dialog() Dialog {
	switch {
	case s.ShowDeleteConfirmation:
		return DialogDeleteConfirmation
	case s.ShowEditDialog:
		return DialogEdit
	case s.ShowAddDialog:
		return DialogAdd
	case s.ShowFiltersDialog:
		return DialogFilters
	default:
		return DialogNone
	}
}

// cells son las celdas transitorias que maneja el Controller.
type cells struct {
	filter       patients.Filter
	errorMessage string

	showAdd     bool
	showFilters bool

	showDelete bool
	toDelete   *patients.Patient

	showEdit bool
	toEdit   *patients.Patient
}

// listing es la última emisión del store vista por el Controller.
type listing struct {
	items  []patients.Patient
	loaded bool
}

// reconcile combina listado y celdas en un snapshot nuevo. Es pura: copia todo
// lo que el snapshot expone para que nadie comparta memoria con las celdas.
func reconcile(l listing, c cells, version uint64) Snapshot {
	return Snapshot{
		Version:                version,
		Patients:               patients.Apply(l.items, c.filter),
		Loading:                !l.loaded,
		Filter:                 copyFilter(c.filter),
		ErrorMessage:           c.errorMessage,
		ShowAddDialog:          c.showAdd,
		ShowFiltersDialog:      c.showFilters,
		ShowDeleteConfirmation: c.showDelete,
		PatientToDelete:        copyPatient(c.toDelete),
		ShowEditDialog:         c.showEdit,
		PatientToEdit:          copyPatient(c.toEdit),
	}
}

func copyPatient(p *patients.Patient) *patients.Patient {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func copyFilter(f patients.Filter) patients.Filter {
	out := patients.Filter{FamilyName: f.FamilyName, GivenName: f.GivenName}
	if f.Sex != nil {
		out.Sex = patients.SexPtr(*f.Sex)
	}
	if f.BirthDate != nil {
		out.BirthDate = patients.DatePtr(*f.BirthDate)
	}
	return out
}
