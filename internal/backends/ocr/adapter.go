// Package ocr holds the two raster backends: a single-page table extractor
// and a multi-page layout analyzer. Both render pages with MuPDF and read
// them with Tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/pdf"
	"github.com/spherical/pdf-inspector/internal/tables"
)

// Models provides downloaded high-accuracy language data.
type Models interface {
	Ensure(ctx context.Context, lang string) (string, error)
}

// Config wires an OCR adapter.
type Config struct {
	Renderer   pdf.Renderer
	Recognizer Recognizer
	// Models is required for the tesseract-best engine only.
	Models Models
	// TessdataPrefix is the system language data directory; empty uses the
	// recognizer default.
	TessdataPrefix string
}

// Adapter is an OCR backend.
type Adapter struct {
	name   domain.Backend
	modes  []domain.Mode
	cfg    Config
	logger *observability.Logger
}

// NewTables creates the single-page ocr-tables backend.
func NewTables(cfg Config, logger *observability.Logger) *Adapter {
	return newAdapter(domain.BackendOCRTables, []domain.Mode{domain.ModeText, domain.ModeTables}, cfg, logger)
}

// NewLayout creates the multi-page ocr-layout backend.
func NewLayout(cfg Config, logger *observability.Logger) *Adapter {
	return newAdapter(domain.BackendOCRLayout, []domain.Mode{domain.ModeAnalysis, domain.ModeTables, domain.ModeText}, cfg, logger)
}

func newAdapter(name domain.Backend, modes []domain.Mode, cfg Config, logger *observability.Logger) *Adapter {
	if cfg.Renderer == nil {
		cfg.Renderer = pdf.NewConverter()
	}
	if cfg.Recognizer == nil {
		cfg.Recognizer = NewTesseract()
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Adapter{name: name, modes: modes, cfg: cfg, logger: logger.WithBackend(string(name))}
}

func (a *Adapter) Name() domain.Backend  { return a.name }
func (a *Adapter) Family() domain.Family { return domain.FamilyOCR }
func (a *Adapter) Modes() []domain.Mode  { return a.modes }

// Requirements is empty: Tesseract is linked, and missing language data is
// reported when the recognizer loads it.
func (a *Adapter) Requirements(domain.Mode) []domain.Requirement { return nil }

// pageResult is what one recognized page contributes.
type pageResult struct {
	raster pdf.Raster
	rec    *Recognition
	table  domain.CanonicalTable
	mean   float64
}

func (a *Adapter) Extract(ctx context.Context, path string, mode domain.Mode, opts domain.Options) (*domain.ExtractionResult, error) {
	if err := backends.CheckMode(a, mode); err != nil {
		return nil, err
	}

	rcfg, err := a.recognizeConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	ropts := pdf.RenderOptions{Pages: opts.Pages, Scale: opts.Scale, Region: opts.Region, Backend: a.name}
	if a.name == domain.BackendOCRTables {
		ropts.Pages = []int{opts.Page}
	}

	var pages []pageResult
	err = a.cfg.Renderer.Render(ctx, path, ropts, func(r pdf.Raster) error {
		opts.Progress(r.Page, r.Total)
		pr, err := a.recognize(ctx, r, rcfg, opts)
		if err != nil {
			return err
		}
		pages = append(pages, pr)
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch mode {
	case domain.ModeText:
		out := make([]domain.PageText, len(pages))
		for i, p := range pages {
			out[i] = domain.PageText{Page: p.raster.Page, Text: p.rec.Text}
		}
		return domain.NewTextResult(a.name, mode, out), nil
	case domain.ModeTables:
		var out []domain.CanonicalTable
		for _, p := range pages {
			if p.table.Empty() {
				continue
			}
			t := p.table
			t.Page = p.raster.Page
			t.Index = len(out)
			out = append(out, tables.WithReport(t, 1, tables.Accuracy(p.mean)))
		}
		return domain.NewTableResult(a.name, mode, out), nil
	default:
		out := make([]domain.PageAnalysis, len(pages))
		for i, p := range pages {
			out[i] = analyze(p)
		}
		return &domain.ExtractionResult{Backend: a.name, Mode: mode, Kind: domain.ResultAnalysis, Pages: out}, nil
	}
}

// recognizeConfig resolves where language data comes from for the engine.
func (a *Adapter) recognizeConfig(ctx context.Context, opts domain.Options) (RecognizeConfig, error) {
	cfg := RecognizeConfig{Language: opts.Language, TessdataPrefix: a.cfg.TessdataPrefix}
	if opts.Engine != domain.EngineTesseractBest {
		return cfg, nil
	}
	if a.cfg.Models == nil {
		return cfg, domain.UnavailableDependency(a.name, "no model cache is configured for the tesseract-best engine", nil)
	}
	dir, err := a.cfg.Models.Ensure(ctx, opts.Language)
	if err != nil {
		var ee *domain.ExtractionError
		if errors.As(err, &ee) {
			ee.Backend = a.name
			return cfg, ee
		}
		return cfg, domain.UnavailableDependency(a.name, "model weights could not be prepared", err)
	}
	cfg.TessdataPrefix = dir
	return cfg, nil
}

func (a *Adapter) recognize(ctx context.Context, r pdf.Raster, rcfg RecognizeConfig, opts domain.Options) (pageResult, error) {
	rec, err := a.cfg.Recognizer.Recognize(ctx, r.PNG, rcfg)
	if err != nil {
		return pageResult{}, a.classify(err, opts)
	}

	frags := make([]domain.TextFragment, 0, len(rec.Words))
	var sum float64
	for _, w := range rec.Words {
		frags = append(frags, domain.TextFragment{
			Text:   w.Text,
			Box:    geometry.FromImageRect(w.Box.Add(r.Offset)),
			Origin: geometry.OriginTopLeft,
		})
		sum += w.Confidence
	}
	var mean float64
	if len(rec.Words) > 0 {
		mean = sum / float64(len(rec.Words))
	}

	// Tolerance is given in points; rasters are scaled.
	table := tables.GroupRows(frags, tables.GroupConfig{
		Tolerance: opts.Tolerance * r.Scale,
		MinChars:  opts.MinChars,
		Origin:    geometry.OriginTopLeft,
	})
	a.logger.Debug().
		Int("page", r.Page).
		Int("words", len(rec.Words)).
		Int("rows", len(table.Rows)).
		Float64("confidence", mean).
		Msg("Recognized page")
	return pageResult{raster: r, rec: rec, table: table, mean: mean}, nil
}

func (a *Adapter) classify(err error, opts domain.Options) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrModelLoad) {
		if opts.Engine == domain.EngineTesseractBest {
			return domain.ModelVocabularyMismatch(a.name, err)
		}
		return domain.UnavailableDependency(a.name, fmt.Sprintf("language data for %q is not installed", opts.Language), err)
	}
	return domain.BackendInternal(a.name, "recognition failed", err)
}

type lineKey struct{ block, par, line int }

func analyze(p pageResult) domain.PageAnalysis {
	blocks := make(map[int]bool)
	lines := make(map[lineKey]bool)
	for _, w := range p.rec.Words {
		blocks[w.Block] = true
		lines[lineKey{w.Block, w.Paragraph, w.Line}] = true
	}
	found := 0
	if !p.table.Empty() && len(p.table.Header) > 1 {
		found = 1
	}
	return domain.PageAnalysis{
		Page:       p.raster.Page,
		Width:      p.raster.Width,
		Height:     p.raster.Height,
		Blocks:     len(blocks),
		Lines:      len(lines),
		Words:      len(p.rec.Words),
		Tables:     found,
		Confidence: *tables.Accuracy(p.mean),
		Text:       p.rec.Text,
	}
}
