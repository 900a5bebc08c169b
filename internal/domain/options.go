package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spherical/pdf-inspector/internal/geometry"
)

const (
	DefaultLineScale = 15
	MinLineScale     = 10
	MaxLineScale     = 50

	DefaultTolerance = 5.0
	MinTolerance     = 1.0
	MaxTolerance     = 20.0

	DefaultMinChars = 1
	MaxMinChars     = 10

	DefaultScale = 2.0
	MinScale     = 1.0
	MaxScale     = 3.0
	ScaleStep    = 0.5

	DefaultLanguage = "eng"

	StructuredMarkdown = "markdown"
	StructuredJSON     = "json"

	EngineTesseract     = "tesseract"
	EngineTesseractBest = "tesseract-best"
)

// Options carries every per-request knob. Each backend reads only the fields
// that apply to it.
type Options struct {
	// Page is the one-based page for single-page modes.
	Page int
	// Pages restricts multi-page modes; nil means all pages.
	Pages    []int
	Password string
	// LineScale is the lattice line-detection sensitivity.
	LineScale int
	Query     string
	// StructuredFormat is StructuredMarkdown or StructuredJSON.
	StructuredFormat string
	// Tolerance is the row-grouping quantum.
	Tolerance float64
	MinChars  int
	// Scale is the OCR render scale in pixels per point.
	Scale    float64
	Language string
	Engine   string
	// Region limits OCR to a PDF-space area of the page.
	Region *geometry.Rect
	// OnPage is called before each page is processed.
	OnPage func(page, total int) `json:"-"`
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{
		Page:             1,
		LineScale:        DefaultLineScale,
		StructuredFormat: StructuredMarkdown,
		Tolerance:        DefaultTolerance,
		MinChars:         DefaultMinChars,
		Scale:            DefaultScale,
		Language:         DefaultLanguage,
		Engine:           EngineTesseract,
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Page == 0 {
		o.Page = d.Page
	}
	if o.LineScale == 0 {
		o.LineScale = d.LineScale
	}
	if o.StructuredFormat == "" {
		o.StructuredFormat = d.StructuredFormat
	}
	if o.Tolerance == 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Scale == 0 {
		o.Scale = d.Scale
	}
	if o.Language == "" {
		o.Language = d.Language
	}
	if o.Engine == "" {
		o.Engine = d.Engine
	}
	return o
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Page < 1 {
		return ValidationError(fmt.Sprintf("page must be >= 1, got %d", o.Page), nil)
	}
	for _, p := range o.Pages {
		if p < 1 {
			return ValidationError(fmt.Sprintf("page numbers must be >= 1, got %d", p), nil)
		}
	}
	if o.LineScale < MinLineScale || o.LineScale > MaxLineScale {
		return ValidationError(fmt.Sprintf("line scale must be between %d and %d, got %d", MinLineScale, MaxLineScale, o.LineScale), nil)
	}
	if o.Tolerance < MinTolerance || o.Tolerance > MaxTolerance {
		return ValidationError(fmt.Sprintf("tolerance must be between %g and %g, got %g", MinTolerance, MaxTolerance, o.Tolerance), nil)
	}
	if o.MinChars < 0 || o.MinChars > MaxMinChars {
		return ValidationError(fmt.Sprintf("min chars must be between 0 and %d, got %d", MaxMinChars, o.MinChars), nil)
	}
	if o.Scale < MinScale || o.Scale > MaxScale {
		return ValidationError(fmt.Sprintf("scale must be between %g and %g, got %g", MinScale, MaxScale, o.Scale), nil)
	}
	if math.Mod(o.Scale, ScaleStep) != 0 {
		return ValidationError(fmt.Sprintf("scale must be a multiple of %g, got %g", ScaleStep, o.Scale), nil)
	}
	switch o.StructuredFormat {
	case StructuredMarkdown, StructuredJSON:
	default:
		return ValidationError(fmt.Sprintf("unknown structured format %q", o.StructuredFormat), nil)
	}
	switch o.Engine {
	case EngineTesseract, EngineTesseractBest:
	default:
		return ValidationError(fmt.Sprintf("unknown OCR engine %q", o.Engine), nil)
	}
	if o.Region != nil && o.Region.Empty() {
		return ValidationError("region has no area", nil)
	}
	return nil
}

// PageSpec renders Pages the way table engines expect it.
func (o Options) PageSpec() string {
	if len(o.Pages) == 0 {
		return "all"
	}
	parts := make([]string, len(o.Pages))
	for i, p := range o.Pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// Progress reports page progress if a callback is set.
func (o Options) Progress(page, total int) {
	if o.OnPage != nil {
		o.OnPage(page, total)
	}
}

// SelectPages returns the one-based pages to process for a document of
// total pages, validating explicit selections against the page count.
func (o Options) SelectPages(total int) ([]int, error) {
	if len(o.Pages) == 0 {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}
	for _, p := range o.Pages {
		if p > total {
			return nil, ValidationError(fmt.Sprintf("page %d out of range (document has %d pages)", p, total), nil)
		}
	}
	return o.Pages, nil
}

// ParsePages parses "all" or a comma separated list such as "1,3,5".
// Duplicates are removed and the result is sorted.
func ParsePages(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		return nil, nil
	}
	seen := make(map[int]bool)
	var pages []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, ValidationError(fmt.Sprintf("invalid page %q in %q", part, spec), err)
		}
		if !seen[n] {
			seen[n] = true
			pages = append(pages, n)
		}
	}
	if len(pages) == 0 {
		return nil, ValidationError(fmt.Sprintf("no pages in %q", spec), nil)
	}
	sort.Ints(pages)
	return pages, nil
}
