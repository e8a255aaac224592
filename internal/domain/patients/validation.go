package patients

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// MinPhoneDigits es la cantidad mínima de dígitos locales (después del código de país).
const MinPhoneDigits = 9

// DefaultCountryCode es el código preseleccionado en los formularios.
const DefaultCountryCode = "+237"

// CountryCode es una opción del selector de prefijo telefónico.
type CountryCode struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

var CountryCodes = []CountryCode{
	{Name: "Cameroon", Code: "+237"},
	{Name: "France", Code: "+33"},
	{Name: "United States", Code: "+1"},
	{Name: "Canada", Code: "+1"},
	{Name: "United Kingdom", Code: "+44"},
	{Name: "Germany", Code: "+49"},
	{Name: "Belgium", Code: "+32"},
	{Name: "Switzerland", Code: "+41"},
	{Name: "Morocco", Code: "+212"},
	{Name: "Senegal", Code: "+221"},
	{Name: "Ivory Coast", Code: "+225"},
	{Name: "Mali", Code: "+223"},
	{Name: "Congo", Code: "+242"},
	{Name: "Gabon", Code: "+241"},
}

// misma forma que acepta el formulario de alta
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)

// ValidationErrors asocia cada campo inválido con su mensaje.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateFields aplica los chequeos de formulario. Devuelve nil o ValidationErrors.
func ValidateFields(f Fields) error {
	errs := ValidationErrors{}

	if strings.TrimSpace(f.FamilyName) == "" {
		errs["family_name"] = "family name is required"
	}
	if strings.TrimSpace(f.GivenName) == "" {
		errs["given_name"] = "given name is required"
	}
	if !f.Sex.Valid() {
		errs["sex"] = "sex must be MALE or FEMALE"
	}
	if f.BirthDate.IsZero() {
		errs["birth_date"] = "birth date is required"
	}
	if strings.TrimSpace(f.Profession) == "" {
		errs["profession"] = "profession is required"
	}
	if !ValidEmail(f.Email) {
		errs["email"] = "invalid email"
	}
	if !ValidPhone(f.PhoneNumber) {
		errs["phone_number"] = "please enter a valid phone number"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidPhone cuenta los dígitos de la parte local ("+237 612345678" -> "612345678").
func ValidPhone(s string) bool {
	_, local := SplitPhone(s)
	n := 0
	for _, r := range local {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n >= MinPhoneDigits
}

// SplitPhone separa código de país y número local en el primer espacio.
// Sin espacio, todo el texto se toma como número local.
func SplitPhone(s string) (code, local string) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " "); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return "", s
}

// FormatPhone arma "+<code> <digits>".
func FormatPhone(code, local string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		code = DefaultCountryCode
	}
	return code + " " + strings.TrimSpace(local)
}
