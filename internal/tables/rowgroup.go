package tables

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
)

// GroupConfig tunes the row-grouping heuristic.
type GroupConfig struct {
	// Tolerance is the vertical quantum: fragments whose y0 fall in the same
	// floor(y0/Tolerance) bucket share a row.
	Tolerance float64
	// MinChars drops fragments with fewer runes than this.
	MinChars int
	// Origin is the coordinate system of every fragment passed in.
	Origin geometry.Origin
}

// DefaultGroupConfig returns the default tolerance and noise threshold for
// PDF page space.
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		Tolerance: domain.DefaultTolerance,
		MinChars:  domain.DefaultMinChars,
		Origin:    geometry.OriginBottomLeft,
	}
}

type row struct {
	minY  float64
	frags []domain.TextFragment
}

// GroupRows synthesizes a table from positioned text. It is a best-effort
// heuristic: a small tolerance over-splits rows and a large one merges them.
//
// The output depends only on the fragment set, not its order. Rows run top to
// bottom, cells left to right, and short rows are right-padded. Zero usable
// fragments yield an empty table.
func GroupRows(frags []domain.TextFragment, cfg GroupConfig) domain.CanonicalTable {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = domain.DefaultTolerance
	}

	buckets := make(map[int64]*row)
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		box := f.Box.Normalize()
		key := int64(math.Floor(box.Y0 / cfg.Tolerance))
		r, ok := buckets[key]
		if !ok {
			r = &row{minY: box.Y0}
			buckets[key] = r
		}
		if box.Y0 < r.minY {
			r.minY = box.Y0
		}
		f.Box = box
		r.frags = append(r.frags, f)
	}

	ordered := make([]*row, 0, len(buckets))
	for _, r := range buckets {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if cfg.Origin == geometry.OriginTopLeft {
			return ordered[i].minY < ordered[j].minY
		}
		return ordered[i].minY > ordered[j].minY
	})

	var cells [][]string
	width := 0
	for _, r := range ordered {
		sort.Slice(r.frags, func(i, j int) bool {
			a, b := r.frags[i], r.frags[j]
			if a.Box.X0 != b.Box.X0 {
				return a.Box.X0 < b.Box.X0
			}
			if a.Box.Y0 != b.Box.Y0 {
				return a.Box.Y0 < b.Box.Y0
			}
			return a.Text < b.Text
		})

		var line []string
		for _, f := range r.frags {
			text := strings.TrimSpace(f.Text)
			if utf8.RuneCountInString(text) < cfg.MinChars {
				continue
			}
			line = append(line, text)
		}
		if len(line) == 0 {
			continue
		}
		if len(line) > width {
			width = len(line)
		}
		cells = append(cells, line)
	}

	header := make([]string, width)
	for i := range header {
		header[i] = ColumnName(i)
	}
	rows := make([][]string, len(cells))
	for i, line := range cells {
		padded := make([]string, width)
		copy(padded, line)
		rows[i] = padded
	}

	return domain.CanonicalTable{Header: header, Rows: rows}
}
