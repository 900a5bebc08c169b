package plumber

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-inspector/internal/geometry"
)

// glyphs lays s out as 6pt-wide glyphs starting at x on baseline y.
func glyphs(s string, x, y float64) []pdf.Text {
	var out []pdf.Text
	for _, r := range s {
		out = append(out, pdf.Text{Font: "Helvetica", FontSize: 12, X: x, Y: y, W: 6, S: string(r)})
		x += 6
	}
	return out
}

func TestFragments(t *testing.T) {
	var texts []pdf.Text
	texts = append(texts, glyphs("Qty", 300, 700)...)
	texts = append(texts, glyphs("Unit", 72, 700)...)
	// one glyph width of space between words
	texts = append(texts, glyphs("Price", 72+24+4, 700)...)
	texts = append(texts, glyphs("7", 300, 680)...)
	texts = append(texts, pdf.Text{S: "\n", X: 0, Y: 680})

	got := fragments(texts)
	require.Len(t, got, 3)

	assert.Equal(t, "7", got[0].Text)
	assert.Equal(t, "Unit Price", got[1].Text)
	assert.Equal(t, "Qty", got[2].Text)

	assert.Equal(t, geometry.OriginBottomLeft, got[1].Origin)
	assert.Equal(t, geometry.Rect{X0: 72, Y0: 700, X1: 130, Y1: 712}, got[1].Box)
}

func TestFragments_Empty(t *testing.T) {
	assert.Empty(t, fragments(nil))
}
