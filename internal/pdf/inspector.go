package pdf

import (
	"context"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/observability"
)

// Inspector reads document structure with pdfcpu.
type Inspector struct {
	validator *Validator
	logger    *observability.Logger
}

// NewInspector creates an Inspector.
func NewInspector(logger *observability.Logger) *Inspector {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Inspector{validator: NewValidator(logger), logger: logger.WithOperation("inspect")}
}

// Configuration returns a relaxed pdfcpu configuration carrying password.
func Configuration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

// Inspect opens the document only for as long as it takes to read the page
// count and page sizes.
func (i *Inspector) Inspect(ctx context.Context, path, password string) (*domain.Document, error) {
	if err := i.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, domain.IOError("open document", err)
	}
	defer f.Close()

	pctx, err := api.ReadValidateAndOptimize(f, Configuration(password))
	if err != nil {
		return nil, ClassifyReadError("", err)
	}

	dims, err := pctx.PageDims()
	if err != nil {
		return nil, domain.MalformedDocument("", "cannot read page sizes", err)
	}

	doc := &domain.Document{
		FilePath:   path,
		TotalPages: pctx.PageCount,
		Encrypted:  pctx.Encrypt != nil,
		Pages:      make([]domain.Page, 0, len(dims)),
	}
	for idx, d := range dims {
		doc.Pages = append(doc.Pages, domain.Page{Index: idx, Width: d.Width, Height: d.Height})
	}

	i.logger.Debug().
		Str("path", path).
		Int("pages", doc.TotalPages).
		Bool("encrypted", doc.Encrypted).
		Msg("Document inspected")
	return doc, nil
}

// ClassifyReadError maps a pdfcpu read failure to an extraction error.
func ClassifyReadError(backend domain.Backend, err error) *domain.ExtractionError {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return domain.PasswordProtected(backend, "the document is encrypted", err)
	}
	return domain.MalformedDocument(backend, "the document could not be parsed", err)
}
