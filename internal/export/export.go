// Package export escribe el listado de pacientes en CSV o XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"patient-roster/internal/domain/patients"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

const sheetName = "Patients"

var Headers = []string{
	"ID", "Family name", "Given name", "Full name", "Sex",
	"Birth date", "Age", "Profession", "Email", "Phone number",
}

// Rows arma una fila por paciente; la edad se calcula a la fecha now.
func Rows(items []patients.Patient, now time.Time) [][]string {
	out := make([][]string, 0, len(items))
	for _, p := range items {
		out = append(out, []string{
			strconv.FormatInt(p.ID, 10),
			p.FamilyName,
			p.GivenName,
			p.FullName(),
			string(p.Sex),
			patients.FormatDate(p.BirthDate),
			strconv.Itoa(p.Age(now)),
			p.Profession,
			p.Email,
			p.PhoneNumber,
		})
	}
	return out
}

func Write(w io.Writer, format Format, items []patients.Patient, now time.Time) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, items, now)
	default:
		return WriteCSV(w, items, now)
	}
}

func WriteCSV(w io.Writer, items []patients.Patient, now time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(items, now)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func WriteXLSX(w io.Writer, items []patients.Patient, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range Headers {
		if err := setCell(f, col+1, 1, header); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(Headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	for i, p := range items {
		row := i + 2
		values := []any{
			p.ID,
			p.FamilyName,
			p.GivenName,
			p.FullName(),
			string(p.Sex),
			patients.FormatDate(p.BirthDate),
			p.Age(now),
			p.Profession,
			p.Email,
			p.PhoneNumber,
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
	}

	widths := []float64{8, 20, 20, 30, 10, 12, 6, 20, 28, 18}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	// cabecera fija
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}
