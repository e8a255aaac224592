package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"patient-roster/internal/domain/patients"
)

func RegisterRoutes(r chi.Router, reg *Registry, now func() time.Time) {
	if now == nil {
		now = time.Now
	}

	r.Get("/country-codes", countryCodesHandler())

	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", createSessionHandler(reg, now))

		sr.Route("/{sessionID}", func(s chi.Router) {
			s.Get("/", getSnapshotHandler(reg, now))
			s.Delete("/", closeSessionHandler(reg))
			s.Get("/stream", streamHandler(reg, now))

			// visibilidad de la presentación
			s.Post("/foreground", visibilityHandler(reg, true))
			s.Post("/background", visibilityHandler(reg, false))

			s.Put("/filter", setFilterHandler(reg))
			s.Delete("/filter", clearFilterHandler(reg))

			s.Post("/dialogs/{dialog}/open", dialogHandler(reg, true))
			s.Post("/dialogs/{dialog}/dismiss", dialogHandler(reg, false))

			s.Post("/patients", addPatientHandler(reg))
			s.Put("/patients/{patientID}", updatePatientHandler(reg))
			s.Post("/patients/{patientID}/edit", requestEditHandler(reg))
			s.Post("/patients/{patientID}/delete", requestDeleteHandler(reg))

			s.Post("/delete/confirm", confirmDeleteHandler(reg))
			s.Post("/delete/cancel", cancelDeleteHandler(reg))
		})
	})
}

// -------------------------
// DTOs
// -------------------------

type patientResponse struct {
	ID          int64  `json:"id"`
	FamilyName  string `json:"family_name"`
	GivenName   string `json:"given_name"`
	FullName    string `json:"full_name"`
	Sex         string `json:"sex"`
	BirthDate   string `json:"birth_date"` // YYYY-MM-DD
	Age         int    `json:"age"`
	Profession  string `json:"profession"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type filterBody struct {
	FamilyName string  `json:"family_name,omitempty"`
	GivenName  string  `json:"given_name,omitempty"`
	Sex        *string `json:"sex,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
}

type filterResponse struct {
	filterBody
	HasActiveFilters bool `json:"has_active_filters"`
}

type snapshotResponse struct {
	SessionID    string            `json:"session_id"`
	Version      uint64            `json:"version"`
	Patients     []patientResponse `json:"patients"`
	Loading      bool              `json:"loading"`
	Filter       filterResponse    `json:"filter"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Dialog       Dialog            `json:"dialog"`

	ShowAddDialog          bool             `json:"show_add_dialog"`
	ShowFiltersDialog      bool             `json:"show_filters_dialog"`
	ShowDeleteConfirmation bool             `json:"show_delete_confirmation"`
	PatientToDelete        *patientResponse `json:"patient_to_delete,omitempty"`
	ShowEditDialog         bool             `json:"show_edit_dialog"`
	PatientToEdit          *patientResponse `json:"patient_to_edit,omitempty"`
}

// patientRequest acepta el teléfono completo o código + número local.
type patientRequest struct {
	FamilyName  string `json:"family_name"`
	GivenName   string `json:"given_name"`
	Sex         string `json:"sex"`
	BirthDate   string `json:"birth_date"` // YYYY-MM-DD
	Profession  string `json:"profession"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	CountryCode string `json:"country_code"`
	PhoneLocal  string `json:"phone_local"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func toPatientResponse(p patients.Patient, now time.Time) patientResponse {
	return patientResponse{
		ID:          p.ID,
		FamilyName:  p.FamilyName,
		GivenName:   p.GivenName,
		FullName:    p.FullName(),
		Sex:         string(p.Sex),
		BirthDate:   patients.FormatDate(p.BirthDate),
		Age:         p.Age(now),
		Profession:  p.Profession,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
	}
}

func toPatientResponsePtr(p *patients.Patient, now time.Time) *patientResponse {
	if p == nil {
		return nil
	}
	out := toPatientResponse(*p, now)
	return &out
}

func toSnapshotResponse(id string, s Snapshot, now time.Time) snapshotResponse {
	items := make([]patientResponse, 0, len(s.Patients))
	for _, p := range s.Patients {
		items = append(items, toPatientResponse(p, now))
	}

	f := filterResponse{
		filterBody: filterBody{
			FamilyName: s.Filter.FamilyName,
			GivenName:  s.Filter.GivenName,
		},
		HasActiveFilters: s.Filter.HasActiveFilters(),
	}
	if s.Filter.Sex != nil {
		v := string(*s.Filter.Sex)
		f.Sex = &v
	}
	if s.Filter.BirthDate != nil {
		v := patients.FormatDate(*s.Filter.BirthDate)
		f.BirthDate = &v
	}

	return snapshotResponse{
		SessionID:              id,
		Version:                s.Version,
		Patients:               items,
		Loading:                s.Loading,
		Filter:                 f,
		ErrorMessage:           s.ErrorMessage,
		Dialog:                 s.Dialog(),
		ShowAddDialog:          s.ShowAddDialog,
		ShowFiltersDialog:      s.ShowFiltersDialog,
		ShowDeleteConfirmation: s.ShowDeleteConfirmation,
		PatientToDelete:        toPatientResponsePtr(s.PatientToDelete, now),
		ShowEditDialog:         s.ShowEditDialog,
		PatientToEdit:          toPatientResponsePtr(s.PatientToEdit, now),
	}
}

func (b filterBody) toFilter() (patients.Filter, error) {
	f := patients.Filter{
		FamilyName: b.FamilyName,
		GivenName:  b.GivenName,
	}
	if b.Sex != nil && strings.TrimSpace(*b.Sex) != "" {
		sex, err := patients.ParseSex(*b.Sex)
		if err != nil {
			return patients.Filter{}, errors.New("sex must be MALE or FEMALE")
		}
		f.Sex = &sex
	}
	if b.BirthDate != nil && strings.TrimSpace(*b.BirthDate) != "" {
		d, err := patients.ParseDate(*b.BirthDate)
		if err != nil {
			return patients.Filter{}, errors.New("birth_date must be YYYY-MM-DD")
		}
		f.BirthDate = &d
	}
	return f, nil
}

// toFields no valida: eso lo hace patients.ValidateFields.
func (req patientRequest) toFields() patients.Fields {
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" && strings.TrimSpace(req.PhoneLocal) != "" {
		phone = patients.FormatPhone(req.CountryCode, req.PhoneLocal)
	}

	f := patients.Fields{
		FamilyName:  strings.TrimSpace(req.FamilyName),
		GivenName:   strings.TrimSpace(req.GivenName),
		Profession:  strings.TrimSpace(req.Profession),
		Email:       strings.TrimSpace(req.Email),
		PhoneNumber: phone,
	}
	if sex, err := patients.ParseSex(req.Sex); err == nil {
		f.Sex = sex
	}
	if d, err := patients.ParseDate(req.BirthDate); err == nil {
		f.BirthDate = d
	}
	return f
}

// -------------------------
// Handlers
// -------------------------

func countryCodesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"default": patients.DefaultCountryCode,
			"codes":   patients.CountryCodes,
		})
	}
}

func createSessionHandler(reg *Registry, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ctrl := reg.Create()
		writeJSON(w, http.StatusCreated, toSnapshotResponse(ctrl.ID(), ctrl.Snapshot(), now()))
	}
}

func getSnapshotHandler(reg *Registry, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toSnapshotResponse(ctrl.ID(), ctrl.Snapshot(), now()))
	}
}

func closeSessionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Close(chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func streamHandler(reg *Registry, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		// un stream abierto cuenta como observador activo
		detach := ctrl.Attach()
		defer detach()

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		enc := json.NewEncoder(w)
		for snap := range ctrl.Subscribe(r.Context()) {
			if err := enc.Encode(toSnapshotResponse(ctrl.ID(), snap, now())); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func visibilityHandler(reg *Registry, foreground bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		var err error
		if foreground {
			err = reg.Foreground(id)
		} else {
			err = reg.Background(id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func setFilterHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}

		var req filterBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		f, err := req.toFilter()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctrl.SetFilter(f)
		w.WriteHeader(http.StatusAccepted)
	}
}

func clearFilterHandler(reg *Registry) http.HandlerFunc {
	return intent(reg, (*Controller).ClearFilter)
}

func dialogHandler(reg *Registry, open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}

		switch Dialog(chi.URLParam(r, "dialog")) {
		case DialogAdd:
			if open {
				ctrl.OpenAddDialog()
			} else {
				ctrl.DismissAddDialog()
			}
		case DialogFilters:
			if open {
				ctrl.OpenFiltersDialog()
			} else {
				ctrl.DismissFiltersDialog()
			}
		case DialogEdit:
			if open {
				http.Error(w, "open the edit dialog through /patients/{patientID}/edit", http.StatusBadRequest)
				return
			}
			ctrl.DismissEdit()
		case DialogDeleteConfirmation:
			if open {
				http.Error(w, "open the delete confirmation through /patients/{patientID}/delete", http.StatusBadRequest)
				return
			}
			ctrl.CancelDelete()
		default:
			http.Error(w, "unknown dialog", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func addPatientHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}
		ctrl.AddPatient(fields)
		w.WriteHeader(http.StatusAccepted)
	}
}

func updatePatientHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		p, ok := editablePatient(w, r, ctrl)
		if !ok {
			return
		}
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}
		ctrl.UpdatePatient(p.ID, fields)
		w.WriteHeader(http.StatusAccepted)
	}
}

func requestEditHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		p, ok := listedPatient(w, r, ctrl)
		if !ok {
			return
		}
		ctrl.RequestEdit(p)
		w.WriteHeader(http.StatusAccepted)
	}
}

func requestDeleteHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		p, ok := listedPatient(w, r, ctrl)
		if !ok {
			return
		}
		ctrl.RequestDelete(p)
		w.WriteHeader(http.StatusAccepted)
	}
}

func confirmDeleteHandler(reg *Registry) http.HandlerFunc {
	return intent(reg, (*Controller).ConfirmDelete)
}

func cancelDeleteHandler(reg *Registry) http.HandlerFunc {
	return intent(reg, (*Controller).CancelDelete)
}

// -------------------------
// Helpers
// -------------------------

// intent adapta un intent sin argumentos a un handler que responde 202.
func intent(reg *Registry, fn func(*Controller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := sessionFrom(w, r, reg)
		if !ok {
			return
		}
		fn(ctrl)
		w.WriteHeader(http.StatusAccepted)
	}
}

func sessionFrom(w http.ResponseWriter, r *http.Request, reg *Registry) (*Controller, bool) {
	ctrl, err := reg.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ctrl, true
}

// listedPatient exige que el paciente figure en el snapshot actual de la sesión.
func listedPatient(w http.ResponseWriter, r *http.Request, ctrl *Controller) (patients.Patient, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return patients.Patient{}, false
	}
	for _, p := range ctrl.Snapshot().Patients {
		if p.ID == id {
			return p, true
		}
	}
	writeError(w, patients.ErrNotFound)
	return patients.Patient{}, false
}

// editablePatient acepta además el registro abierto en edición, aunque el
// filtro activo ya no lo muestre.
func editablePatient(w http.ResponseWriter, r *http.Request, ctrl *Controller) (patients.Patient, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return patients.Patient{}, false
	}
	if edit := ctrl.Snapshot().PatientToEdit; edit != nil && edit.ID == id {
		return *edit, true
	}
	return listedPatient(w, r, ctrl)
}

func decodeFields(w http.ResponseWriter, r *http.Request) (patients.Fields, bool) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return patients.Fields{}, false
	}

	fields := req.toFields()
	if err := patients.ValidateFields(fields); err != nil {
		writeError(w, err)
		return patients.Fields{}, false
	}
	return fields, true
}

func writeError(w http.ResponseWriter, err error) {
	var verrs patients.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: verrs})
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, patients.ErrNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
