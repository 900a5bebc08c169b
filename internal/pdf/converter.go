package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/geometry"
)

// Raster is one rendered page, PNG encoded.
type Raster struct {
	Page  int
	Total int
	PNG   []byte
	// Width and Height are the pixel size of PNG.
	Width  int
	Height int
	// PageWidth and PageHeight are the page size in points.
	PageWidth  float64
	PageHeight float64
	Scale      float64
	// Offset is the top-left pixel of PNG inside the full page raster;
	// non-zero when a region was cropped.
	Offset image.Point
}

// RenderOptions selects what to render.
type RenderOptions struct {
	// Pages are one-based; nil renders every page.
	Pages  []int
	Scale  float64
	Region *geometry.Rect
	// Backend labels errors; defaults to ocr-tables.
	Backend domain.Backend
}

// Renderer turns pages into rasters.
type Renderer interface {
	Render(ctx context.Context, path string, opts RenderOptions, fn func(Raster) error) error
}

// Converter implements Renderer with MuPDF.
type Converter struct{}

// NewConverter creates a new PDF converter instance
func NewConverter() *Converter {
	return &Converter{}
}

// OpenFitz opens a document with MuPDF, mapping open failures.
func OpenFitz(backend domain.Backend, path string) (*fitz.Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, domain.PasswordProtected(backend, "the document is encrypted", err)
		}
		return nil, domain.MalformedDocument(backend, "MuPDF could not open the document", err)
	}
	return doc, nil
}

// Render renders the selected pages in order and hands each to fn. The
// document is closed before Render returns on every path.
func (c *Converter) Render(ctx context.Context, path string, opts RenderOptions, fn func(Raster) error) error {
	backend := opts.Backend
	if backend == "" {
		backend = domain.BackendOCRTables
	}
	doc, err := OpenFitz(backend, path)
	if err != nil {
		return err
	}
	defer doc.Close()

	total := doc.NumPage()
	pages, err := domain.Options{Pages: opts.Pages}.SelectPages(total)
	if err != nil {
		return err
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = domain.DefaultScale
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		raster, err := renderPage(doc, backend, page, total, scale, opts.Region)
		if err != nil {
			return err
		}
		if err := fn(raster); err != nil {
			return err
		}
	}
	return nil
}

func renderPage(doc *fitz.Document, backend domain.Backend, page, total int, scale float64, region *geometry.Rect) (Raster, error) {
	bound, err := doc.Bound(page - 1)
	if err != nil {
		return Raster{}, domain.MalformedDocument(backend, fmt.Sprintf("cannot read page %d", page), err)
	}
	pageW, pageH := float64(bound.Dx()), float64(bound.Dy())

	img, err := doc.ImageDPI(page-1, geometry.DPI(scale))
	if err != nil {
		return Raster{}, domain.BackendInternal(backend, fmt.Sprintf("failed to render page %d", page), err)
	}

	var out image.Image = img
	var offset image.Point
	if region != nil {
		area := geometry.PDFToRaster(*region, pageW, pageH, scale)
		cropped, err := geometry.Crop(img, area)
		if err != nil {
			return Raster{}, domain.ValidationError(fmt.Sprintf("region lies outside page %d", page), err)
		}
		out = cropped
		offset = cropped.Bounds().Min
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return Raster{}, domain.BackendInternal(backend, fmt.Sprintf("failed to encode page %d", page), err)
	}

	b := out.Bounds()
	return Raster{
		Page:       page,
		Total:      total,
		PNG:        buf.Bytes(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		PageWidth:  pageW,
		PageHeight: pageH,
		Scale:      scale,
		Offset:     offset,
	}, nil
}
