package plumber

import (
	"sort"

	"github.com/ledongthuc/pdf"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
)

const (
	// spaceGap inserts a space between glyphs further apart than this many
	// ems.
	spaceGap = 0.15
	// cellGap splits a line into separate fragments beyond this many ems.
	cellGap = 1.0
	// fallbackFontSize applies when the content stream reports none.
	fallbackFontSize = 10.0
)

// fragments merges glyph runs into positioned fragments. Glyphs sharing a
// baseline are sorted by x and joined while the gap stays below cellGap.
func fragments(texts []pdf.Text) []domain.TextFragment {
	byBaseline := make(map[float64][]pdf.Text)
	for _, t := range texts {
		if t.S == "" || t.S == "\n" {
			continue
		}
		byBaseline[t.Y] = append(byBaseline[t.Y], t)
	}

	baselines := make([]float64, 0, len(byBaseline))
	for y := range byBaseline {
		baselines = append(baselines, y)
	}
	sort.Float64s(baselines)

	var out []domain.TextFragment
	for _, y := range baselines {
		row := byBaseline[y]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

		var cur *block
		for _, t := range row {
			size := t.FontSize
			if size <= 0 {
				size = fallbackFontSize
			}
			if cur != nil {
				gap := t.X - cur.x1
				switch {
				case gap > cellGap*size:
					out = append(out, cur.fragment())
					cur = nil
				case gap > spaceGap*size:
					cur.text += " "
				}
			}
			if cur == nil {
				cur = &block{x0: t.X, y: t.Y, size: size}
			}
			cur.text += t.S
			cur.x1 = t.X + t.W
			if size > cur.size {
				cur.size = size
			}
		}
		if cur != nil {
			out = append(out, cur.fragment())
		}
	}
	return out
}

type block struct {
	text   string
	x0, x1 float64
	y      float64
	size   float64
}

func (b *block) fragment() domain.TextFragment {
	return domain.TextFragment{
		Text:   b.text,
		Box:    geometry.Rect{X0: b.x0, Y0: b.y, X1: b.x1, Y1: b.y + b.size},
		Origin: geometry.OriginBottomLeft,
	}
}
