package domain

import (
	"time"

	"github.com/spherical/pdf-inspector/internal/geometry"
)

// Backend identifies one extraction engine.
type Backend string

const (
	BackendMuPDF     Backend = "mupdf"
	BackendPlumber   Backend = "plumber"
	BackendPoppler   Backend = "poppler"
	BackendCamelot   Backend = "camelot"
	BackendTabula    Backend = "tabula"
	BackendOCRTables Backend = "ocr-tables"
	BackendOCRLayout Backend = "ocr-layout"
)

// Family groups backends with the same selection surface.
type Family string

const (
	FamilyDirectText    Family = "direct-text"
	FamilyGeometryTable Family = "geometry-table"
	FamilyNativeTable   Family = "native-table"
	FamilyOCR           Family = "ocr"
)

// Mode selects what a backend extracts.
type Mode string

const (
	ModeText       Mode = "text"
	ModePage       Mode = "page"
	ModeStructured Mode = "structured"
	ModeSearch     Mode = "search"
	ModeTables     Mode = "tables"
	ModeImages     Mode = "images"
	ModeLattice    Mode = "lattice"
	ModeStream     Mode = "stream"
	ModeAnalysis   Mode = "analysis"
)

// ResultKind tags the payload an ExtractionResult carries.
type ResultKind string

const (
	ResultText     ResultKind = "text"
	ResultTables   ResultKind = "tables"
	ResultImages   ResultKind = "images"
	ResultMatches  ResultKind = "matches"
	ResultAnalysis ResultKind = "analysis"
)

// Document is an inspected PDF.
type Document struct {
	FilePath   string `json:"file_path"`
	TotalPages int    `json:"total_pages"`
	Encrypted  bool   `json:"encrypted"`
	Pages      []Page `json:"pages"`
}

// Page is one page of a Document. Index is zero-based.
type Page struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Number is the one-based page number shown to users.
func (p Page) Number() int { return p.Index + 1 }

// TextFragment is a positioned piece of text.
type TextFragment struct {
	Text   string
	Box    geometry.Rect
	Origin geometry.Origin
}

// TableMetrics is the per-table parsing report.
type TableMetrics struct {
	Accuracy   *float64 `json:"accuracy,omitempty"`
	Whitespace float64  `json:"whitespace"`
	Order      int      `json:"order"`
}

// CanonicalTable is the normalized grid every table backend converges to.
// Header names are unique and every row has len(Header) cells.
type CanonicalTable struct {
	Page    int           `json:"page"`
	Index   int           `json:"index"`
	Header  []string      `json:"header"`
	Rows    [][]string    `json:"rows"`
	Metrics *TableMetrics `json:"metrics,omitempty"`
}

// Empty reports whether the table has no columns or no rows.
func (t CanonicalTable) Empty() bool {
	return len(t.Header) == 0 || len(t.Rows) == 0
}

// PageText is the text of one page.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// SearchMatch is one occurrence of a search query.
type SearchMatch struct {
	Page int           `json:"page"`
	Text string        `json:"text"`
	Rect geometry.Rect `json:"rect"`
}

// ExtractedImage is an embedded image pulled out of a page.
type ExtractedImage struct {
	Page   int    `json:"page"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"-"`
}

// PageAnalysis is the layout summary of one OCR-analyzed page.
type PageAnalysis struct {
	Page       int     `json:"page_number"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Blocks     int     `json:"blocks"`
	Lines      int     `json:"lines"`
	Words      int     `json:"words"`
	Tables     int     `json:"tables"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
}

// ExtractionResult is the tagged output of one adapter call.
type ExtractionResult struct {
	Backend    Backend          `json:"backend"`
	Mode       Mode             `json:"mode"`
	Kind       ResultKind       `json:"kind"`
	Text       []PageText       `json:"text,omitempty"`
	Tables     []CanonicalTable `json:"tables,omitempty"`
	Images     []ExtractedImage `json:"images,omitempty"`
	Matches    []SearchMatch    `json:"matches,omitempty"`
	Pages      []PageAnalysis   `json:"pages,omitempty"`
	Structured string           `json:"structured,omitempty"`
	// StructuredFormat is "markdown" or "json" when Structured is set.
	StructuredFormat string   `json:"structured_format,omitempty"`
	Advisories       []string `json:"advisories,omitempty"`
}

// IsEmpty reports a well-formed result with nothing in it.
func (r *ExtractionResult) IsEmpty() bool {
	switch r.Kind {
	case ResultText:
		if r.Structured != "" {
			return false
		}
		for _, p := range r.Text {
			if p.Text != "" {
				return false
			}
		}
		return true
	case ResultTables:
		for _, t := range r.Tables {
			if !t.Empty() {
				return false
			}
		}
		return true
	case ResultImages:
		return len(r.Images) == 0
	case ResultMatches:
		return len(r.Matches) == 0
	case ResultAnalysis:
		return len(r.Pages) == 0
	}
	return true
}

// AddAdvisory appends a user-visible notice.
func (r *ExtractionResult) AddAdvisory(msg string) {
	r.Advisories = append(r.Advisories, msg)
}

// NewTextResult creates a text result.
func NewTextResult(backend Backend, mode Mode, pages []PageText) *ExtractionResult {
	return &ExtractionResult{Backend: backend, Mode: mode, Kind: ResultText, Text: pages}
}

// NewTableResult creates a table result.
func NewTableResult(backend Backend, mode Mode, tables []CanonicalTable) *ExtractionResult {
	return &ExtractionResult{Backend: backend, Mode: mode, Kind: ResultTables, Tables: tables}
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventFallback       EventType = "fallback"
	EventAdvisory       EventType = "advisory"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	TotalPages int         `json:"total_pages,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
