package mupdf

import (
	"strings"
	"testing"

	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<div id="page0" style="width:612pt;height:792pt">
<p style="top:84.5pt;left:72pt;line-height:12pt"><span style="font-family:Helvetica;font-size:12pt">Item</span></p>
<p style="top:84.5pt;left:300pt;line-height:12pt"><span style="font-family:Helvetica;font-size:12pt">Price</span></p>
<p style="top:104pt;left:72pt"><span style="font-size:10pt">Widget </span><span style="font-size:10pt">Pro</span></p>
<p style="top:120pt;left:72pt"><span>   </span></p>
<p>no position</p>
</div>`

func TestParseLines(t *testing.T) {
	lines, err := parseLines(strings.NewReader(sampleHTML))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, line{Text: "Item", Top: 84.5, Left: 72, FontSize: 12}, lines[0])
	assert.Equal(t, "Price", lines[1].Text)
	assert.Equal(t, "Widget Pro", lines[2].Text)
	assert.Equal(t, 10.0, lines[2].FontSize)
}

func TestLineBox(t *testing.T) {
	l := line{Text: "abcd", Top: 100, Left: 50, FontSize: 10}

	box := l.box()
	assert.Equal(t, geometry.Rect{X0: 50, Y0: 100, X1: 70, Y1: 110}, box)

	f := l.fragment()
	assert.Equal(t, geometry.OriginTopLeft, f.Origin)

	// raster y=100..110 on a 792pt page is PDF y=682..692
	assert.Equal(t, geometry.Rect{X0: 50, Y0: 682, X1: 70, Y1: 692}, box.FlipY(792))
}

func TestParseStyle(t *testing.T) {
	s := parseStyle("TOP: 5pt; left:7.25pt;bogus")
	assert.Equal(t, "5pt", s["top"])

	v, ok := points(s["left"])
	assert.True(t, ok)
	assert.Equal(t, 7.25, v)

	_, ok = points("")
	assert.False(t, ok)
}
