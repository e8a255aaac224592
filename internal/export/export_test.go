package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"patient-roster/internal/domain/patients"
)

var now = time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)

func sample() []patients.Patient {
	return []patients.Patient{
		{ID: 1, FamilyName: "Mballa", GivenName: "Jean", Sex: patients.SexMale, BirthDate: patients.Date(1980, time.May, 1), Profession: "Enseignant", Email: "jean@x.com", PhoneNumber: "+237 612345678"},
		{ID: 2, FamilyName: "Ngo, Mbeng", GivenName: "Aline", Sex: patients.SexFemale, BirthDate: patients.Date(1992, time.October, 18), Profession: "Infirmière", Email: "aline@x.com", PhoneNumber: "+237 699887766"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sample(), now))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, []string{"1", "Mballa", "Jean", "Jean Mballa", "MALE", "1980-05-01", "46", "Enseignant", "jean@x.com", "+237 612345678"}, records[1])
	// cumple mañana: todavía 33
	assert.Equal(t, "Ngo, Mbeng", records[2][1])
	assert.Equal(t, "33", records[2][6])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sample(), now))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, "Jean Mballa", rows[1][3])
	assert.Equal(t, "46", rows[1][6])
	assert.Equal(t, "Aline", rows[2][2])
}

func TestWriteEmptyRoster(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, now))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
