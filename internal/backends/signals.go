package backends

import (
	"strings"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/runner"
)

// signal maps a marker in engine output to an error kind.
type signal struct {
	marker  string
	kind    domain.ErrorKind
	message string
}

// Markers are matched case-insensitively in order; the first hit wins.
var engineSignals = []signal{
	{"zerodivisionerror", domain.KindDegenerateGeometryFault, "the table algorithm hit a degenerate page geometry"},
	{"division by zero", domain.KindDegenerateGeometryFault, "the table algorithm hit a degenerate page geometry"},
	{"/ by zero", domain.KindDegenerateGeometryFault, "the table algorithm hit a degenerate page geometry"},
	{"ghostscript", domain.KindUnavailableDependency, "Ghostscript is missing or not working"},
	{"image conversion failed", domain.KindUnavailableDependency, "Ghostscript is missing or not working"},
	{"unable to access jarfile", domain.KindUnavailableDependency, "the tabula jar could not be found"},
	{"no module named", domain.KindUnavailableDependency, "the engine installation is incomplete"},
	{"not been decrypted", domain.KindPasswordProtected, "the document is encrypted"},
	{"incorrect password", domain.KindPasswordProtected, "the document is encrypted"},
	{"bad password", domain.KindPasswordProtected, "the document is encrypted"},
	{"password required", domain.KindPasswordProtected, "the document is encrypted"},
	{"invalidpasswordexception", domain.KindPasswordProtected, "the document is encrypted"},
	{"pdfreaderror", domain.KindMalformedDocument, "the engine could not parse the document"},
	{"eof marker", domain.KindMalformedDocument, "the engine could not parse the document"},
	{"invalidpdfexception", domain.KindMalformedDocument, "the engine could not parse the document"},
	{"error: end-of-file", domain.KindMalformedDocument, "the engine could not parse the document"},
}

// ClassifyEngineFailure turns a failed external engine run into a
// structured error. tool names the executable for the not-installed case.
func ClassifyEngineFailure(backend domain.Backend, tool string, stderr []byte, err error) *domain.ExtractionError {
	if runner.IsNotFound(err) {
		return domain.UnavailableDependency(backend, tool+" is not installed", err)
	}
	out := strings.ToLower(string(stderr))
	for _, s := range engineSignals {
		if strings.Contains(out, s.marker) {
			return domain.NewExtractionError(s.kind, backend, s.message, err)
		}
	}
	return domain.BackendInternal(backend, tool+" failed", err)
}
