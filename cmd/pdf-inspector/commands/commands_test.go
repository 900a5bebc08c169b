package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-inspector/cmd/pdf-inspector/ui"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/export"
	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/spherical/pdf-inspector/internal/history"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseRegion(" 10, 20.5 ,300,400 ")
	require.NoError(t, err)
	assert.Equal(t, &geometry.Rect{X0: 10, Y0: 20.5, X1: 300, Y1: 400}, r)

	for _, bad := range []string{"1,2,3", "a,b,c,d", "100,0,50,10", "0,10,10,10"} {
		_, err := parseRegion(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFormats(t *testing.T) {
	formats, err := parseFormats([]string{"csv", "XLSX", ".json", "markdown", "csv"})
	require.NoError(t, err)
	assert.Equal(t, []export.Format{export.FormatCSV, export.FormatXLSX, export.FormatJSON, export.FormatMarkdown}, formats)

	_, err = parseFormats([]string{"pdf"})
	assert.Error(t, err)
}

func TestBuildRequest(t *testing.T) {
	extractFlags.backend = "Camelot"
	extractFlags.mode = "LATTICE"
	extractFlags.pages = "3,1"
	extractFlags.lineScale = 25
	extractFlags.region = ""
	t.Cleanup(func() {
		extractFlags.backend = string(domain.BackendMuPDF)
		extractFlags.mode = string(domain.ModeText)
		extractFlags.pages = "all"
		extractFlags.lineScale = 0
	})

	req, err := buildRequest("report.pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.BackendCamelot, req.Backend)
	assert.Equal(t, domain.ModeLattice, req.Mode)
	assert.Equal(t, []int{1, 3}, req.Options.Pages)
	assert.Equal(t, 25, req.Options.LineScale)

	extractFlags.pages = "1,zero"
	_, err = buildRequest("report.pdf")
	assert.Error(t, err)
}

func TestBackendRows(t *testing.T) {
	rows := backendRows([]inspector.BackendStatus{{
		Name:   domain.BackendCamelot,
		Family: domain.FamilyNativeTable,
		Modes: []inspector.ModeStatus{
			{Mode: domain.ModeLattice, Missing: []string{"camelot", "Ghostscript"}},
			{Mode: domain.ModeStream, Available: true},
		},
	}})

	assert.Equal(t, [][]string{
		{"camelot", "native-table", "lattice", "no", "camelot, Ghostscript"},
		{"", "", "stream", "yes", ""},
	}, rows)
}

func TestHistoryRows(t *testing.T) {
	rows := historyRows([]*history.Run{{
		ID:              uuid.New(),
		Document:        "report.pdf",
		Backend:         domain.BackendCamelot,
		RequestedMode:   domain.ModeLattice,
		EffectiveMode:   domain.ModeStream,
		FallbackApplied: true,
		Status:          history.StatusFailed,
		ErrorKind:       domain.KindDegenerateGeometryFault,
		DurationMS:      1500,
		CreatedAt:       time.Now(),
	}})

	require.Len(t, rows, 1)
	assert.Equal(t, "lattice -> stream", rows[0][3])
	assert.Equal(t, "failed (degenerate_geometry_fault)", rows[0][4])
	assert.Equal(t, "2s", rows[0][6])
}

func TestRenderEvents(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	ui.SetOutput(&out, &errOut)
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })

	events := make(chan inspector.StreamEvent, 4)
	events <- inspector.StreamEvent{Type: inspector.EventFallback, Payload: "Ghostscript is not installed; using stream"}
	events <- inspector.StreamEvent{Type: inspector.EventAdvisory, Payload: "No tables found"}
	events <- inspector.StreamEvent{Type: inspector.EventComplete, Payload: "Extraction complete in 12ms"}
	close(events)

	renderEvents(events)

	assert.Equal(t, "⚠ Fallback: Ghostscript is not installed; using stream\n⚠ No tables found\n✓ Extraction complete in 12ms\n", out.String())
}

func TestExtractionFailed(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	ui.SetOutput(&out, &out)
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })

	err := extractionFailed(domain.DegenerateGeometry(domain.BackendCamelot, "degenerate", nil).
		WithAlternatives(domain.BackendPlumber, domain.BackendMuPDF))
	assert.EqualError(t, err, "extraction failed (degenerate_geometry_fault)")
	assert.Contains(t, out.String(), "plumber, mupdf")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	prev := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { cfgFile = prev })

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRenderEvents_TotalChanges(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	ui.SetOutput(&out, &errOut)
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })

	events := make(chan inspector.StreamEvent, 4)
	events <- inspector.StreamEvent{Type: inspector.EventPageProcessing, PageNumber: 1, TotalPages: 1}
	events <- inspector.StreamEvent{Type: inspector.EventPageProcessing, PageNumber: 2, TotalPages: 3}
	events <- inspector.StreamEvent{Type: inspector.EventPageProcessing, PageNumber: 3, TotalPages: 3}
	close(events)

	renderEvents(events)

	assert.Contains(t, errOut.String(), "3/3")
}
