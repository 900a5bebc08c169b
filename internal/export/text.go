package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
)

func textTo(res *domain.ExtractionResult, f Format) ([]byte, error) {
	// Structured output is already rendered in its own format.
	if res.Structured != "" {
		if (f == FormatMarkdown && res.StructuredFormat == domain.StructuredMarkdown) ||
			(f == FormatJSON && res.StructuredFormat == domain.StructuredJSON) {
			return []byte(res.Structured), nil
		}
	}

	switch f {
	case FormatText:
		return []byte(backends.JoinPages(res.Text) + "\n"), nil
	case FormatMarkdown:
		var b strings.Builder
		for i, p := range res.Text {
			if i > 0 {
				b.WriteString("\n")
			}
			if p.Page > 0 {
				fmt.Fprintf(&b, "## Page %d\n\n", p.Page)
			}
			b.WriteString(strings.TrimRight(p.Text, "\n"))
			b.WriteString("\n")
		}
		return []byte(b.String()), nil
	case FormatJSON:
		pages := res.Text
		if pages == nil {
			pages = []domain.PageText{}
		}
		return encodeJSON(pages)
	case FormatCSV:
		rows := [][]string{{"page", "text"}}
		for _, p := range res.Text {
			rows = append(rows, []string{strconv.Itoa(p.Page), p.Text})
		}
		return writeCSV(rows)
	default:
		return textXLSX(res.Text)
	}
}

func textXLSX(pages []domain.PageText) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Text"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	rows := make([][]string, len(pages))
	for i, p := range pages {
		rows[i] = []string{strconv.Itoa(p.Page), p.Text}
	}
	if err := writeGrid(f, sheet, []string{"page", "text"}, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheet, "B", "B", 100)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func matchesTo(matches []domain.SearchMatch, f Format) ([]byte, error) {
	if f == FormatJSON {
		if matches == nil {
			matches = []domain.SearchMatch{}
		}
		return encodeJSON(matches)
	}
	rows := [][]string{{"page", "text", "x0", "y0", "x1", "y1"}}
	for _, m := range matches {
		rows = append(rows, []string{
			strconv.Itoa(m.Page),
			m.Text,
			coord(m.Rect.X0), coord(m.Rect.Y0), coord(m.Rect.X1), coord(m.Rect.Y1),
		})
	}
	return writeCSV(rows)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func analysisTo(pages []domain.PageAnalysis, f Format) ([]byte, error) {
	if f == FormatJSON {
		if pages == nil {
			pages = []domain.PageAnalysis{}
		}
		return encodeJSON(pages)
	}
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", backends.PageSeparator(p.Page))
		fmt.Fprintf(&b, "Size: %dx%d px\n", p.Width, p.Height)
		fmt.Fprintf(&b, "Blocks: %d  Lines: %d  Words: %d  Tables: %d\n", p.Blocks, p.Lines, p.Words, p.Tables)
		fmt.Fprintf(&b, "Confidence: %.2f\n", p.Confidence)
		if p.Text != "" {
			b.WriteString("\n")
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

type imageEntry struct {
	Page   int    `json:"page"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

func imagesTo(images []domain.ExtractedImage) ([]byte, error) {
	out := make([]imageEntry, len(images))
	for i, img := range images {
		out[i] = imageEntry{Page: img.Page, Name: img.Name, Format: img.Format, Width: img.Width, Height: img.Height, Bytes: len(img.Data)}
	}
	return encodeJSON(out)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
