package patients

import (
	"strings"
	"time"
)

// DateLayout es el formato con el que se guarda y se expone la fecha de nacimiento.
const DateLayout = "2006-01-02"

// Sex define el sexo del paciente.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// Valid indica si s es uno de los dos valores admitidos.
func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// ParseSex acepta "male"/"female" sin importar mayúsculas.
func ParseSex(raw string) (Sex, error) {
	s := Sex(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidInput
	}
	return s, nil
}

// Patient representa una ficha de paciente del consultorio.
type Patient struct {
	ID int64 // asignado por el store, 0 = todavía no persistido

	FamilyName string
	GivenName  string
	Sex        Sex
	BirthDate  time.Time // solo fecha, medianoche UTC

	Profession  string
	Email       string
	PhoneNumber string // "+237 612345678"
}

// FullName devuelve "nombre apellido".
func (p Patient) FullName() string {
	return p.GivenName + " " + p.FamilyName
}

// Age calcula los años cumplidos a la fecha now. No se persiste.
func (p Patient) Age(now time.Time) int {
	return AgeAt(p.BirthDate, now)
}

// AgeAt devuelve los años calendario completos entre birth y now.
func AgeAt(birth, now time.Time) int {
	now = Date(now.Year(), now.Month(), now.Day())
	birth = Date(birth.Year(), birth.Month(), birth.Day())
	if now.Before(birth) {
		return 0
	}

	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// Date construye una fecha de calendario normalizada (medianoche UTC).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ToDate descarta la parte horaria conservando el día de t.
func ToDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate interpreta "YYYY-MM-DD".
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidInput
	}
	return t, nil
}

// FormatDate es el inverso de ParseDate.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NormalizeName es la forma canónica usada para detectar duplicados:
// sin espacios alrededor y en minúsculas.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameIdentity compara la terna (apellido, nombre, fecha de nacimiento)
// con las reglas de duplicados.
func SameIdentity(a, b Patient) bool {
	return NormalizeName(a.FamilyName) == NormalizeName(b.FamilyName) &&
		NormalizeName(a.GivenName) == NormalizeName(b.GivenName) &&
		ToDate(a.BirthDate).Equal(ToDate(b.BirthDate))
}

// Fields son los datos editables de un paciente, tal como llegan de la presentación.
type Fields struct {
	FamilyName  string
	GivenName   string
	Sex         Sex
	BirthDate   time.Time
	Profession  string
	Email       string
	PhoneNumber string
}

// ToPatient arma un candidato con el id indicado (0 para altas).
func (f Fields) ToPatient(id int64) Patient {
	return Patient{
		ID:          id,
		FamilyName:  f.FamilyName,
		GivenName:   f.GivenName,
		Sex:         f.Sex,
		BirthDate:   ToDate(f.BirthDate),
		Profession:  f.Profession,
		Email:       f.Email,
		PhoneNumber: f.PhoneNumber,
	}
}

// FieldsOf extrae los datos editables de un paciente existente.
func FieldsOf(p Patient) Fields {
	return Fields{
		FamilyName:  p.FamilyName,
		GivenName:   p.GivenName,
		Sex:         p.Sex,
		BirthDate:   p.BirthDate,
		Profession:  p.Profession,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
	}
}
