package mupdf

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
)

// avgGlyphWidth approximates glyph advance as a fraction of the font size.
const avgGlyphWidth = 0.5

// line is one positioned text line of MuPDF HTML output, in raster space.
type line struct {
	Text     string
	Top      float64
	Left     float64
	FontSize float64
}

func (l line) box() geometry.Rect {
	size := l.FontSize
	if size <= 0 {
		size = 10
	}
	width := float64(len([]rune(l.Text))) * size * avgGlyphWidth
	return geometry.Rect{X0: l.Left, Y0: l.Top, X1: l.Left + width, Y1: l.Top + size}
}

func (l line) fragment() domain.TextFragment {
	return domain.TextFragment{Text: l.Text, Box: l.box(), Origin: geometry.OriginTopLeft}
}

// parseLines reads the absolutely positioned paragraphs MuPDF emits for
// each text line.
func parseLines(r io.Reader) ([]line, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []line
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			style := parseStyle(attr(n, "style"))
			top, okTop := points(style["top"])
			left, okLeft := points(style["left"])
			if okTop && okLeft {
				text := strings.TrimSpace(textContent(n))
				if text != "" {
					out = append(out, line{Text: text, Top: top, Left: left, FontSize: fontSize(n)})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return out
}

func points(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

// fontSize returns the first font-size found on n or its descendants.
func fontSize(n *html.Node) float64 {
	if n.Type == html.ElementNode {
		if size, ok := points(parseStyle(attr(n, "style"))["font-size"]); ok {
			return size
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if size := fontSize(c); size > 0 {
			return size
		}
	}
	return 0
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
