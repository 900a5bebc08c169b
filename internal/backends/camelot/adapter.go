// Package camelot is a native-table backend driving camelot through the
// Python interpreter it is installed in.
package camelot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/runner"
	"github.com/spherical/pdf-inspector/internal/tables"
)

// DefaultGhostscript lists the platform names of the Ghostscript binary.
var DefaultGhostscript = []string{"gs", "gswin64c", "gswin32c"}

// script reads the tables together with their parsing reports, which the
// camelot CLI does not export. Arguments: path flavor pages password
// line_scale.
const script = `import json, sys
import camelot
path, flavor, pages, password, line_scale = sys.argv[1:6]
kwargs = {"pages": pages, "flavor": flavor}
if password:
    kwargs["password"] = password
if flavor == "lattice":
    kwargs["line_scale"] = int(line_scale)
out = []
for t in camelot.read_pdf(path, **kwargs):
    r = t.parsing_report
    out.append({"page": int(r["page"]), "order": int(r["order"]),
                "accuracy": float(r["accuracy"]), "whitespace": float(r["whitespace"]),
                "data": [[None if c is None else str(c) for c in row] for row in t.data]})
json.dump(out, sys.stdout)
`

// report is one table as printed by script.
type report struct {
	Page       int         `json:"page"`
	Order      int         `json:"order"`
	Accuracy   float64     `json:"accuracy"`
	Whitespace float64     `json:"whitespace"`
	Data       [][]*string `json:"data"`
}

// Adapter runs camelot in lattice or stream mode.
type Adapter struct {
	python      string
	ghostscript []string
	run         runner.Runner
	logger      *observability.Logger
}

// New creates the camelot adapter. python is the interpreter camelot is
// installed in.
func New(python string, ghostscript []string, run runner.Runner, logger *observability.Logger) *Adapter {
	if python == "" {
		python = "python3"
	}
	if len(ghostscript) == 0 {
		ghostscript = DefaultGhostscript
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Adapter{
		python:      python,
		ghostscript: ghostscript,
		run:         run,
		logger:      logger.WithBackend(string(domain.BackendCamelot)),
	}
}

func (a *Adapter) Name() domain.Backend  { return domain.BackendCamelot }
func (a *Adapter) Family() domain.Family { return domain.FamilyNativeTable }
func (a *Adapter) Modes() []domain.Mode  { return []domain.Mode{domain.ModeLattice, domain.ModeStream} }

// Requirements: lattice rasterizes pages through Ghostscript; stream does not.
func (a *Adapter) Requirements(mode domain.Mode) []domain.Requirement {
	reqs := []domain.Requirement{{Name: "camelot", Executables: []string{a.python}}}
	if mode == domain.ModeLattice {
		reqs = append(reqs, domain.Requirement{Name: "Ghostscript", Executables: a.ghostscript})
	}
	return reqs
}

// Args builds the interpreter command line.
func Args(mode domain.Mode, path string, opts domain.Options) []string {
	lineScale := ""
	if mode == domain.ModeLattice {
		lineScale = strconv.Itoa(opts.LineScale)
	}
	return []string{"-c", script, path, string(mode), opts.PageSpec(), opts.Password, lineScale}
}

func (a *Adapter) Extract(ctx context.Context, path string, mode domain.Mode, opts domain.Options) (*domain.ExtractionResult, error) {
	if err := backends.CheckMode(a, mode); err != nil {
		return nil, err
	}

	stdout, stderr, err := a.run.Run(ctx, a.python, Args(mode, path, opts)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, backends.ClassifyEngineFailure(domain.BackendCamelot, a.python, stderr, err)
	}

	found, err := decode(stdout)
	if err != nil {
		return nil, domain.BackendInternal(domain.BackendCamelot, "could not read camelot output", err)
	}
	a.logger.Debug().Str("mode", string(mode)).Int("tables", len(found)).Msg("Camelot finished")
	return domain.NewTableResult(domain.BackendCamelot, mode, found), nil
}

// decode turns the script output into tables in page, then table order.
func decode(stdout []byte) ([]domain.CanonicalTable, error) {
	var reports []report
	if err := json.Unmarshal(stdout, &reports); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Page != reports[j].Page {
			return reports[i].Page < reports[j].Page
		}
		return reports[i].Order < reports[j].Order
	})

	out := make([]domain.CanonicalTable, 0, len(reports))
	for _, r := range reports {
		t := tables.WithReport(tables.Normalize(r.Data), r.Order, tables.Accuracy(r.Accuracy))
		t.Metrics.Whitespace = tables.Percent(r.Whitespace)
		t.Page = r.Page
		t.Index = len(out)
		out = append(out, t)
	}
	return out, nil
}
