// Package export serializes extraction results into downloadable artifacts.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf-inspector/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
	FormatJSON     Format = "json"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

var contentTypes = map[Format]string{
	FormatCSV:      "text/csv",
	FormatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatJSON:     "application/json",
	FormatText:     "text/plain; charset=utf-8",
	FormatMarkdown: "text/markdown; charset=utf-8",
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	return contentTypes[f]
}

// Artifact is a serialized result ready for download.
type Artifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if f == "markdown" {
		f = FormatMarkdown
	}
	if _, ok := contentTypes[f]; !ok {
		return "", domain.ValidationError(fmt.Sprintf("unknown export format %q", s), nil)
	}
	return f, nil
}

// Formats lists the formats available for a result kind.
func Formats(kind domain.ResultKind) []Format {
	switch kind {
	case domain.ResultTables:
		return []Format{FormatCSV, FormatXLSX, FormatJSON}
	case domain.ResultText:
		return []Format{FormatText, FormatMarkdown, FormatJSON, FormatCSV, FormatXLSX}
	case domain.ResultMatches:
		return []Format{FormatJSON, FormatCSV}
	case domain.ResultAnalysis:
		return []Format{FormatJSON, FormatText}
	case domain.ResultImages:
		return []Format{FormatJSON}
	}
	return nil
}

// Filename builds {basename}_{backend}_{mode}.{ext} for the source document.
func Filename(source string, backend domain.Backend, mode domain.Mode, f Format) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	return fmt.Sprintf("%s_%s_%s.%s", base, backend, mode, f)
}

// Serialize renders res in the given format. The output depends only on
// its inputs.
func Serialize(source string, res *domain.ExtractionResult, f Format) (*Artifact, error) {
	if res == nil {
		return nil, domain.ExportError("nothing to export", nil)
	}
	if !supports(res.Kind, f) {
		return nil, domain.ValidationError(fmt.Sprintf("%s results cannot be exported as %s", res.Kind, f), nil)
	}

	var (
		data []byte
		err  error
	)
	switch res.Kind {
	case domain.ResultTables:
		data, err = tablesTo(res.Tables, f)
	case domain.ResultText:
		data, err = textTo(res, f)
	case domain.ResultMatches:
		data, err = matchesTo(res.Matches, f)
	case domain.ResultAnalysis:
		data, err = analysisTo(res.Pages, f)
	case domain.ResultImages:
		data, err = imagesTo(res.Images)
	}
	if err != nil {
		return nil, domain.ExportError(fmt.Sprintf("failed to write %s", f), err)
	}

	return &Artifact{
		Filename:    Filename(source, res.Backend, res.Mode, f),
		ContentType: ContentType(f),
		Data:        data,
	}, nil
}

func supports(kind domain.ResultKind, f Format) bool {
	for _, have := range Formats(kind) {
		if have == f {
			return true
		}
	}
	return false
}
