// Package tables turns raw backend output into canonical tables.
package tables

import (
	"fmt"
	"strings"

	"github.com/spherical/pdf-inspector/internal/domain"
)

// ColumnName is the synthesized name for the zero-based column i.
func ColumnName(i int) string {
	return fmt.Sprintf("Column_%d", i+1)
}

// Normalize converts raw rows into a CanonicalTable. The first row is the
// header; nil or blank header cells get a synthesized name and repeated names
// are suffixed _1, _2, ... in first-seen order. An empty first row means the
// table has no header, in which case the width of the second row decides the
// column count. Short body rows are right-padded with empty strings and wider
// rows extend the header with synthesized names, so no cell is dropped.
//
// Normalize never fails; no rows yields a table with an empty header.
func Normalize(raw [][]*string) domain.CanonicalTable {
	if len(raw) == 0 {
		return domain.CanonicalTable{Header: []string{}, Rows: [][]string{}}
	}

	var names []string
	if len(raw[0]) > 0 {
		names = make([]string, len(raw[0]))
		for i, cell := range raw[0] {
			if cell == nil || strings.TrimSpace(*cell) == "" {
				names[i] = ColumnName(i)
			} else {
				names[i] = *cell
			}
		}
	} else if len(raw) > 1 {
		names = make([]string, len(raw[1]))
		for i := range names {
			names[i] = ColumnName(i)
		}
	}

	body := raw[1:]
	for _, row := range body {
		for i := len(names); i < len(row); i++ {
			names = append(names, ColumnName(i))
		}
	}

	header := Dedupe(names)
	rows := make([][]string, 0, len(body))
	for _, row := range body {
		out := make([]string, len(header))
		for i, cell := range row {
			if cell != nil {
				out[i] = *cell
			}
		}
		rows = append(rows, out)
	}

	return domain.CanonicalTable{Header: header, Rows: rows}
}

// NormalizeStrings is Normalize for backends that never report missing cells.
func NormalizeStrings(raw [][]string) domain.CanonicalTable {
	return Normalize(Ptrs(raw))
}

// Ptrs lifts a string grid into the optional-cell form Normalize accepts.
func Ptrs(raw [][]string) [][]*string {
	out := make([][]*string, len(raw))
	for i, row := range raw {
		out[i] = make([]*string, len(row))
		for j := range row {
			out[i][j] = &row[j]
		}
	}
	return out
}

// Dedupe makes names pairwise distinct. The first occurrence keeps its name;
// later ones get the next free numeric suffix.
func Dedupe(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	seen := make(map[string]int, len(names))

	for i, name := range names {
		if !used[name] {
			used[name] = true
			out[i] = name
			continue
		}
		n := seen[name]
		candidate := ""
		for {
			n++
			candidate = fmt.Sprintf("%s_%d", name, n)
			if !used[candidate] {
				break
			}
		}
		seen[name] = n
		used[candidate] = true
		out[i] = candidate
	}
	return out
}
