// Package tabula is a native-table backend driving tabula-java.
package tabula

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/runner"
	"github.com/spherical/pdf-inspector/internal/tables"
)

// Adapter runs tabula-java through the JVM.
type Adapter struct {
	java   string
	jar    string
	run    runner.Runner
	logger *observability.Logger
}

// New creates the tabula adapter.
func New(java, jar string, run runner.Runner, logger *observability.Logger) *Adapter {
	if java == "" {
		java = "java"
	}
	if jar == "" {
		jar = "tabula.jar"
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Adapter{java: java, jar: jar, run: run, logger: logger.WithBackend(string(domain.BackendTabula))}
}

func (a *Adapter) Name() domain.Backend  { return domain.BackendTabula }
func (a *Adapter) Family() domain.Family { return domain.FamilyNativeTable }
func (a *Adapter) Modes() []domain.Mode  { return []domain.Mode{domain.ModeLattice, domain.ModeStream} }

func (a *Adapter) Requirements(domain.Mode) []domain.Requirement {
	return []domain.Requirement{{Name: "Java", Executables: []string{a.java}}}
}

// Args builds the JVM command line.
func Args(jar string, mode domain.Mode, path string, opts domain.Options) []string {
	args := []string{"-jar", jar, "-f", "JSON", "-p", opts.PageSpec()}
	if mode == domain.ModeLattice {
		args = append(args, "-l")
	} else {
		args = append(args, "-t")
	}
	if opts.Password != "" {
		args = append(args, "-s", opts.Password)
	}
	return append(args, path)
}

// cell and table mirror tabula's JSON writer.
type cell struct {
	Text string `json:"text"`
}

type table struct {
	Method string   `json:"extraction_method"`
	Page   int      `json:"page_number"`
	Data   [][]cell `json:"data"`
}

func (a *Adapter) Extract(ctx context.Context, path string, mode domain.Mode, opts domain.Options) (*domain.ExtractionResult, error) {
	if err := backends.CheckMode(a, mode); err != nil {
		return nil, err
	}

	stdout, stderr, err := a.run.Run(ctx, a.java, Args(a.jar, mode, path, opts)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, backends.ClassifyEngineFailure(domain.BackendTabula, "tabula", stderr, err)
	}

	found, err := parse(stdout, opts)
	if err != nil {
		return nil, domain.BackendInternal(domain.BackendTabula, "could not read tabula output", err)
	}
	a.logger.Debug().Str("mode", string(mode)).Int("tables", len(found)).Msg("Tabula finished")
	return domain.NewTableResult(domain.BackendTabula, mode, found), nil
}

// parse converts tabula JSON. Older writers omit page_number; those tables
// are attributed to the single selected page when there is one.
func parse(data []byte, opts domain.Options) ([]domain.CanonicalTable, error) {
	if len(data) == 0 {
		return []domain.CanonicalTable{}, nil
	}
	var raw []table
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	out := make([]domain.CanonicalTable, 0, len(raw))
	orders := make(map[int]int)
	for _, rt := range raw {
		page := rt.Page
		if page == 0 && len(opts.Pages) == 1 {
			page = opts.Pages[0]
		}
		grid := make([][]string, len(rt.Data))
		for i, row := range rt.Data {
			grid[i] = make([]string, len(row))
			for j, c := range row {
				grid[i][j] = c.Text
			}
		}
		orders[page]++
		t := tables.WithReport(tables.NormalizeStrings(grid), orders[page], nil)
		t.Page = page
		t.Index = len(out)
		out = append(out, t)
	}
	return out, nil
}
