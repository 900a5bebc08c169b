// Package mupdf is the direct-text backend built on MuPDF via go-fitz.
package mupdf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/pdf"
	"github.com/spherical/pdf-inspector/internal/tables"
)

// Adapter extracts text, structure, matches, tables and images with MuPDF.
type Adapter struct {
	logger *observability.Logger
}

// New creates the MuPDF adapter.
func New(logger *observability.Logger) *Adapter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Adapter{logger: logger.WithBackend(string(domain.BackendMuPDF))}
}

func (a *Adapter) Name() domain.Backend  { return domain.BackendMuPDF }
func (a *Adapter) Family() domain.Family { return domain.FamilyDirectText }

func (a *Adapter) Modes() []domain.Mode {
	return []domain.Mode{
		domain.ModeText,
		domain.ModePage,
		domain.ModeStructured,
		domain.ModeSearch,
		domain.ModeTables,
		domain.ModeImages,
	}
}

func (a *Adapter) Requirements(domain.Mode) []domain.Requirement { return nil }

func (a *Adapter) Extract(ctx context.Context, path string, mode domain.Mode, opts domain.Options) (*domain.ExtractionResult, error) {
	if err := backends.CheckMode(a, mode); err != nil {
		return nil, err
	}
	if mode == domain.ModeImages {
		return a.images(ctx, path, opts)
	}
	if mode == domain.ModeSearch && strings.TrimSpace(opts.Query) == "" {
		return nil, domain.ValidationError("search needs a query", nil)
	}

	doc, err := pdf.OpenFitz(domain.BackendMuPDF, path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	switch mode {
	case domain.ModeText:
		return a.allText(ctx, doc, opts)
	case domain.ModePage:
		return a.pageText(doc, opts)
	case domain.ModeStructured:
		return a.structured(ctx, doc, opts)
	case domain.ModeSearch:
		return a.search(ctx, doc, opts)
	default:
		return a.tables(ctx, doc, opts)
	}
}

func (a *Adapter) allText(ctx context.Context, doc *fitz.Document, opts domain.Options) (*domain.ExtractionResult, error) {
	pages, err := opts.SelectPages(doc.NumPage())
	if err != nil {
		return nil, err
	}
	out := make([]domain.PageText, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opts.Progress(p, len(pages))
		text, err := doc.Text(p - 1)
		if err != nil {
			return nil, domain.BackendInternal(domain.BackendMuPDF, fmt.Sprintf("failed to read text of page %d", p), err)
		}
		out = append(out, domain.PageText{Page: p, Text: text})
	}
	return domain.NewTextResult(domain.BackendMuPDF, domain.ModeText, out), nil
}

func (a *Adapter) pageText(doc *fitz.Document, opts domain.Options) (*domain.ExtractionResult, error) {
	if err := backends.SinglePage(opts.Page, doc.NumPage()); err != nil {
		return nil, err
	}
	text, err := doc.Text(opts.Page - 1)
	if err != nil {
		return nil, domain.BackendInternal(domain.BackendMuPDF, fmt.Sprintf("failed to read text of page %d", opts.Page), err)
	}
	return domain.NewTextResult(domain.BackendMuPDF, domain.ModePage, []domain.PageText{{Page: opts.Page, Text: text}}), nil
}

type pageLines struct {
	Page   int
	Width  float64
	Height float64
	Lines  []line
}

// lines returns the positioned lines of each selected page.
func (a *Adapter) lines(ctx context.Context, doc *fitz.Document, opts domain.Options) ([]pageLines, error) {
	pages, err := opts.SelectPages(doc.NumPage())
	if err != nil {
		return nil, err
	}
	out := make([]pageLines, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opts.Progress(p, len(pages))

		bound, err := doc.Bound(p - 1)
		if err != nil {
			return nil, domain.MalformedDocument(domain.BackendMuPDF, fmt.Sprintf("cannot read page %d", p), err)
		}
		markup, err := doc.HTML(p-1, false)
		if err != nil {
			return nil, domain.BackendInternal(domain.BackendMuPDF, fmt.Sprintf("failed to lay out page %d", p), err)
		}
		lines, err := parseLines(strings.NewReader(markup))
		if err != nil {
			return nil, domain.BackendInternal(domain.BackendMuPDF, fmt.Sprintf("failed to parse layout of page %d", p), err)
		}
		out = append(out, pageLines{Page: p, Width: float64(bound.Dx()), Height: float64(bound.Dy()), Lines: lines})
	}
	return out, nil
}

type structuredLine struct {
	Text string        `json:"text"`
	BBox geometry.Rect `json:"bbox"`
}

type structuredPage struct {
	Page   int              `json:"page"`
	Width  float64          `json:"width"`
	Height float64          `json:"height"`
	Lines  []structuredLine `json:"lines"`
}

func (a *Adapter) structured(ctx context.Context, doc *fitz.Document, opts domain.Options) (*domain.ExtractionResult, error) {
	pages, err := a.lines(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	res := &domain.ExtractionResult{
		Backend:          domain.BackendMuPDF,
		Mode:             domain.ModeStructured,
		Kind:             domain.ResultText,
		StructuredFormat: opts.StructuredFormat,
	}
	for _, p := range pages {
		texts := make([]string, len(p.Lines))
		for i, l := range p.Lines {
			texts[i] = l.Text
		}
		res.Text = append(res.Text, domain.PageText{Page: p.Page, Text: strings.Join(texts, "\n")})
	}

	if opts.StructuredFormat == domain.StructuredJSON {
		doc := make([]structuredPage, 0, len(pages))
		for _, p := range pages {
			sp := structuredPage{Page: p.Page, Width: p.Width, Height: p.Height, Lines: []structuredLine{}}
			for _, l := range p.Lines {
				sp.Lines = append(sp.Lines, structuredLine{Text: l.Text, BBox: l.box().FlipY(p.Height)})
			}
			doc = append(doc, sp)
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, domain.BackendInternal(domain.BackendMuPDF, "failed to encode structured output", err)
		}
		res.Structured = string(data)
		return res, nil
	}

	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Page %d\n\n", p.Page)
		for _, l := range p.Lines {
			b.WriteString(l.Text)
			b.WriteString("\n")
		}
	}
	res.Structured = b.String()
	return res, nil
}

func (a *Adapter) search(ctx context.Context, doc *fitz.Document, opts domain.Options) (*domain.ExtractionResult, error) {
	pages, err := a.lines(ctx, doc, opts)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	res := &domain.ExtractionResult{Backend: domain.BackendMuPDF, Mode: domain.ModeSearch, Kind: domain.ResultMatches}
	for _, p := range pages {
		for _, l := range p.Lines {
			if strings.Contains(strings.ToLower(l.Text), query) {
				res.Matches = append(res.Matches, domain.SearchMatch{
					Page: p.Page,
					Text: l.Text,
					Rect: l.box().FlipY(p.Height),
				})
			}
		}
	}
	return res, nil
}

func (a *Adapter) tables(ctx context.Context, doc *fitz.Document, opts domain.Options) (*domain.ExtractionResult, error) {
	pages, err := a.lines(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	cfg := tables.GroupConfig{Tolerance: opts.Tolerance, MinChars: opts.MinChars, Origin: geometry.OriginTopLeft}
	var out []domain.CanonicalTable
	for _, p := range pages {
		frags := make([]domain.TextFragment, len(p.Lines))
		for i, l := range p.Lines {
			frags[i] = l.fragment()
		}
		t := tables.GroupRows(frags, cfg)
		if t.Empty() {
			continue
		}
		t.Page = p.Page
		t.Index = len(out)
		out = append(out, tables.WithReport(t, 1, nil))
	}

	a.logger.Debug().Int("tables", len(out)).Msg("Grouped MuPDF lines into tables")
	return domain.NewTableResult(domain.BackendMuPDF, domain.ModeTables, out), nil
}

func (a *Adapter) images(ctx context.Context, path string, opts domain.Options) (*domain.ExtractionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.IOError("open document", err)
	}
	defer f.Close()

	var selected []string
	for _, p := range opts.Pages {
		selected = append(selected, strconv.Itoa(p))
	}

	pageImages, err := api.ExtractImagesRaw(f, selected, pdf.Configuration(opts.Password))
	if err != nil {
		return nil, pdf.ClassifyReadError(domain.BackendMuPDF, err)
	}

	res := &domain.ExtractionResult{Backend: domain.BackendMuPDF, Mode: domain.ModeImages, Kind: domain.ResultImages}
	counts := make(map[int]int)
	for _, byObj := range pageImages {
		for _, obj := range sortedKeys(byObj) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			img := byObj[obj]
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, domain.BackendInternal(domain.BackendMuPDF, fmt.Sprintf("failed to read image %s", img.Name), err)
			}
			counts[img.PageNr]++
			ext := img.FileType
			if ext == "" {
				ext = "bin"
			}
			res.Images = append(res.Images, domain.ExtractedImage{
				Page:   img.PageNr,
				Name:   fmt.Sprintf("page%d_img%d.%s", img.PageNr, counts[img.PageNr], ext),
				Format: ext,
				Width:  img.Width,
				Height: img.Height,
				Data:   data,
			})
		}
	}
	return res, nil
}
