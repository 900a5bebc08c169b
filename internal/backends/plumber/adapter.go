// Package plumber is the geometry-table backend: positioned glyphs from
// ledongthuc/pdf are grouped into rows heuristically.
package plumber

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/tables"
)

// Adapter extracts text and heuristic tables from glyph positions.
type Adapter struct {
	logger *observability.Logger
}

// New creates the plumber adapter.
func New(logger *observability.Logger) *Adapter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Adapter{logger: logger.WithBackend(string(domain.BackendPlumber))}
}

func (a *Adapter) Name() domain.Backend  { return domain.BackendPlumber }
func (a *Adapter) Family() domain.Family { return domain.FamilyGeometryTable }

func (a *Adapter) Modes() []domain.Mode {
	return []domain.Mode{domain.ModeText, domain.ModePage, domain.ModeTables}
}

func (a *Adapter) Requirements(domain.Mode) []domain.Requirement { return nil }

func (a *Adapter) Extract(ctx context.Context, path string, mode domain.Mode, opts domain.Options) (res *domain.ExtractionResult, err error) {
	if err := backends.CheckMode(a, mode); err != nil {
		return nil, err
	}

	f, r, err := open(path, opts.Password)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// The reader panics on some damaged content streams.
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error().Str("panic", fmt.Sprint(p)).Msg("Reader panicked")
			res, err = nil, domain.MalformedDocument(domain.BackendPlumber, "the document content could not be decoded", fmt.Errorf("%v", p))
		}
	}()

	switch mode {
	case domain.ModeText:
		return a.text(ctx, r, opts)
	case domain.ModePage:
		if err := backends.SinglePage(opts.Page, r.NumPage()); err != nil {
			return nil, err
		}
		text, err := pageText(r, opts.Page)
		if err != nil {
			return nil, err
		}
		return domain.NewTextResult(domain.BackendPlumber, domain.ModePage, []domain.PageText{{Page: opts.Page, Text: text}}), nil
	default:
		return a.tables(ctx, r, opts)
	}
}

func open(path, password string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, domain.IOError("open document", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, domain.IOError("stat document", err)
	}

	// NewReaderEncrypted asks again after a wrong password; offer it once.
	offered := false
	r, err := pdf.NewReaderEncrypted(f, info.Size(), func() string {
		if offered {
			return ""
		}
		offered = true
		return password
	})
	if err != nil {
		f.Close()
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, nil, domain.PasswordProtected(domain.BackendPlumber, "the document is encrypted", err)
		}
		return nil, nil, domain.MalformedDocument(domain.BackendPlumber, "the document could not be parsed", err)
	}
	return f, r, nil
}

func pageText(r *pdf.Reader, page int) (string, error) {
	p := r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", domain.BackendInternal(domain.BackendPlumber, fmt.Sprintf("failed to read text of page %d", page), err)
	}
	return text, nil
}

func (a *Adapter) text(ctx context.Context, r *pdf.Reader, opts domain.Options) (*domain.ExtractionResult, error) {
	pages, err := opts.SelectPages(r.NumPage())
	if err != nil {
		return nil, err
	}
	out := make([]domain.PageText, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opts.Progress(p, len(pages))
		text, err := pageText(r, p)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PageText{Page: p, Text: text})
	}
	return domain.NewTextResult(domain.BackendPlumber, domain.ModeText, out), nil
}

func (a *Adapter) tables(ctx context.Context, r *pdf.Reader, opts domain.Options) (*domain.ExtractionResult, error) {
	pages, err := opts.SelectPages(r.NumPage())
	if err != nil {
		return nil, err
	}

	cfg := tables.GroupConfig{Tolerance: opts.Tolerance, MinChars: opts.MinChars, Origin: geometry.OriginBottomLeft}
	var out []domain.CanonicalTable
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opts.Progress(p, len(pages))

		page := r.Page(p)
		if page.V.IsNull() {
			continue
		}
		frags := fragments(page.Content().Text)
		t := tables.GroupRows(frags, cfg)
		if t.Empty() {
			continue
		}
		t.Page = p
		t.Index = len(out)
		out = append(out, tables.WithReport(t, 1, nil))
		a.logger.Debug().Int("page", p).Int("fragments", len(frags)).Int("rows", len(t.Rows)).Msg("Grouped page")
	}
	return domain.NewTableResult(domain.BackendPlumber, domain.ModeTables, out), nil
}
