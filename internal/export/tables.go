package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/spherical/pdf-inspector/internal/domain"
)

func tablesTo(tables []domain.CanonicalTable, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return tablesCSV(tables)
	case FormatXLSX:
		return tablesXLSX(tables)
	default:
		return tablesJSON(tables)
	}
}

func multiPage(tables []domain.CanonicalTable) bool {
	for _, t := range tables[min(1, len(tables)):] {
		if t.Page != tables[0].Page {
			return true
		}
	}
	return false
}

// tablesCSV writes every table one after another separated by a blank
// line, each with its own header line.
func tablesCSV(tables []domain.CanonicalTable) ([]byte, error) {
	var buf bytes.Buffer
	labelPages := multiPage(tables)
	for i, t := range tables {
		if i > 0 {
			buf.WriteString("\n")
		}
		if labelPages {
			fmt.Fprintf(&buf, "# Page %d\n", t.Page)
		}
		w := csv.NewWriter(&buf)
		if err := w.Write(t.Header); err != nil {
			return nil, err
		}
		if err := w.WriteAll(t.Rows); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func tablesXLSX(tables []domain.CanonicalTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	names := newSheetNames()
	first := true
	for i, t := range tables {
		sheet := names.next(fmt.Sprintf("Table_%d_Page_%d", i+1, t.Page))
		if err := addSheet(f, sheet, first); err != nil {
			return nil, err
		}
		first = false
		if err := writeGrid(f, sheet, t.Header, t.Rows); err != nil {
			return nil, err
		}
	}
	if first {
		if err := f.SetSheetName("Sheet1", "Tables"); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// addSheet renames the default sheet for the first table and appends the
// rest.
func addSheet(f *excelize.File, sheet string, first bool) error {
	if first {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
		return nil
	}
	_, err := f.NewSheet(sheet)
	return err
}

func writeGrid(f *excelize.File, sheet string, header []string, rows [][]string) error {
	write := func(row int, values []string) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write(1, header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := write(i+2, r); err != nil {
			return err
		}
	}
	return nil
}

const maxSheetName = 31

// sheetNames produces valid, unique worksheet names.
type sheetNames struct {
	used map[string]bool
}

func newSheetNames() *sheetNames {
	return &sheetNames{used: make(map[string]bool)}
}

// SanitizeSheetName removes characters Excel rejects, trims quotes and
// truncates to 31 runes.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	name = truncateRunes(name, maxSheetName)
	if strings.TrimSpace(name) == "" {
		return "Sheet"
	}
	return name
}

func (s *sheetNames) next(name string) string {
	base := SanitizeSheetName(name)
	candidate := base
	for n := 2; s.used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	s.used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type jsonTable struct {
	Page    int                  `json:"page"`
	Data    []orderedRow         `json:"data"`
	Metrics *domain.TableMetrics `json:"metrics,omitempty"`
}

func tablesJSON(tables []domain.CanonicalTable) ([]byte, error) {
	out := make([]jsonTable, len(tables))
	for i, t := range tables {
		rows := make([]orderedRow, len(t.Rows))
		for j, r := range t.Rows {
			rows[j] = orderedRow{keys: t.Header, values: r}
		}
		out[i] = jsonTable{Page: t.Page, Data: rows, Metrics: t.Metrics}
	}
	return encodeJSON(out)
}
