// Package poppler is the direct-text backend that goes through pdftotext
// via docconv.
package poppler

import (
	"bytes"
	"context"
	"os"
	"strings"

	"code.sajari.com/docconv"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/observability"
)

const pdfMIME = "application/pdf"

// ConvertFunc converts a document body to text.
type ConvertFunc func(data []byte) (string, error)

func docconvPDF(data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), pdfMIME, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// Adapter extracts whole-document text with Poppler.
type Adapter struct {
	executable string
	convert    ConvertFunc
	logger     *observability.Logger
}

// New creates the Poppler adapter. executable is the pdftotext name probed
// before a run.
func New(executable string, logger *observability.Logger) *Adapter {
	if executable == "" {
		executable = "pdftotext"
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Adapter{executable: executable, convert: docconvPDF, logger: logger.WithBackend(string(domain.BackendPoppler))}
}

// WithConverter replaces the conversion function.
func (a *Adapter) WithConverter(fn ConvertFunc) *Adapter {
	a.convert = fn
	return a
}

func (a *Adapter) Name() domain.Backend  { return domain.BackendPoppler }
func (a *Adapter) Family() domain.Family { return domain.FamilyDirectText }
func (a *Adapter) Modes() []domain.Mode  { return []domain.Mode{domain.ModeText} }

func (a *Adapter) Requirements(domain.Mode) []domain.Requirement {
	return []domain.Requirement{{Name: "pdftotext", Executables: []string{a.executable}}}
}

// Extract converts the whole document; the result is a single text entry
// with page 0 because pdftotext output carries no page breaks here.
func (a *Adapter) Extract(ctx context.Context, path string, mode domain.Mode, opts domain.Options) (*domain.ExtractionResult, error) {
	if err := backends.CheckMode(a, mode); err != nil {
		return nil, err
	}
	if len(opts.Pages) > 0 {
		return nil, domain.ValidationError("poppler converts whole documents; page selection is not supported", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError("read document", err)
	}

	type converted struct {
		text string
		err  error
	}
	done := make(chan converted, 1)
	go func() {
		text, err := a.convert(data)
		done <- converted{text: text, err: err}
	}()

	var out converted
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out = <-done:
	}
	if out.err != nil {
		return nil, classify(out.err)
	}

	opts.Progress(1, 1)
	return domain.NewTextResult(domain.BackendPoppler, domain.ModeText, []domain.PageText{{Page: 0, Text: out.text}}), nil
}

// classify maps pdftotext failures reported through docconv.
func classify(err error) *domain.ExtractionError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "executable file not found"), strings.Contains(msg, "no such file or directory"):
		return domain.UnavailableDependency(domain.BackendPoppler, "pdftotext is not installed", err)
	case strings.Contains(msg, "password"):
		return domain.PasswordProtected(domain.BackendPoppler, "the document is encrypted", err)
	case strings.Contains(msg, "syntax error"), strings.Contains(msg, "couldn't read xref"), strings.Contains(msg, "may not be a pdf"):
		return domain.MalformedDocument(domain.BackendPoppler, "pdftotext could not parse the document", err)
	default:
		return domain.BackendInternal(domain.BackendPoppler, "pdftotext failed", err)
	}
}
