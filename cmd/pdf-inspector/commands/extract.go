package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-inspector/cmd/pdf-inspector/ui"
	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/session"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

const previewRows = 20

var extractFlags struct {
	backend          string
	mode             string
	page             int
	pages            string
	password         string
	lineScale        int
	query            string
	structuredFormat string
	tolerance        float64
	minChars         int
	scale            float64
	language         string
	engine           string
	region           string
	timeout          time.Duration
	formats          []string
	outputDir        string
	saveImages       bool
	quiet            bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract text, tables, matches, images or layout from a PDF",
	Long: `Run one backend in one mode against a PDF.

Backends and modes:
  mupdf       text, page, structured, search, tables, images
  plumber     text, page, tables
  poppler     text
  camelot     lattice, stream
  tabula      lattice, stream
  ocr-tables  text, tables
  ocr-layout  analysis, tables, text

A lattice request whose rasterizer is missing runs as stream instead, and a
native-table backend that reports a missing dependency is retried once.`,
	Example: `  pdf-inspector extract report.pdf
  pdf-inspector extract report.pdf -b mupdf -m search -q revenue
  pdf-inspector extract report.pdf -b camelot -m lattice --pages 1,3 -e csv,xlsx
  pdf-inspector extract scan.pdf -b ocr-tables -m tables --page 2 --engine tesseract-best`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&extractFlags.backend, "backend", "b", string(domain.BackendMuPDF), "extraction backend")
	f.StringVarP(&extractFlags.mode, "mode", "m", string(domain.ModeText), "extraction mode")
	f.IntVar(&extractFlags.page, "page", 0, "page number for single-page modes (default 1)")
	f.StringVar(&extractFlags.pages, "pages", "all", `pages to process: "all" or a comma list such as 1,3,5`)
	f.StringVar(&extractFlags.password, "password", "", "document password")
	f.IntVar(&extractFlags.lineScale, "line-scale", 0, "lattice line detection sensitivity, 10-50 (default 15)")
	f.StringVarP(&extractFlags.query, "query", "q", "", "search query")
	f.StringVar(&extractFlags.structuredFormat, "structured-format", "", "structured output: markdown or json")
	f.Float64Var(&extractFlags.tolerance, "tolerance", 0, "row grouping tolerance in points")
	f.IntVar(&extractFlags.minChars, "min-chars", 0, "minimum characters for a fragment to count")
	f.Float64Var(&extractFlags.scale, "scale", 0, "OCR render scale, 1.0-3.0")
	f.StringVar(&extractFlags.language, "lang", "", "OCR language")
	f.StringVar(&extractFlags.engine, "engine", "", "OCR engine: tesseract or tesseract-best")
	f.StringVar(&extractFlags.region, "region", "", "OCR crop area in PDF points: x0,y0,x1,y1")
	f.DurationVar(&extractFlags.timeout, "timeout", 0, "extraction deadline (default from config)")
	f.StringSliceVarP(&extractFlags.formats, "export", "e", nil, "export formats: csv, xlsx, json, txt, md")
	f.StringVarP(&extractFlags.outputDir, "output-dir", "o", "", "directory for exports (default from config)")
	f.BoolVar(&extractFlags.saveImages, "save-images", false, "write extracted images to the output directory")
	f.BoolVar(&extractFlags.quiet, "quiet", false, "do not print the result, only export it")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	req, err := buildRequest(args[0])
	if err != nil {
		return err
	}
	formats, err := parseFormats(extractFlags.formats)
	if err != nil {
		return err
	}

	client, _, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	outputDir := extractFlags.outputDir
	if outputDir == "" {
		outputDir = client.Config().Storage.OutputDir
	}

	events := make(chan inspector.StreamEvent, 100)
	type result struct {
		out *inspector.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := client.Extract(ctx, req, events)
		close(events)
		done <- result{out, err}
	}()

	ui.Section(fmt.Sprintf("Extracting %s with %s (%s)", filepath.Base(req.Path), req.Backend, req.Mode))
	renderEvents(events)

	res := <-done
	if res.err != nil {
		return extractionFailed(res.err)
	}
	out := res.out

	if !extractFlags.quiet {
		printOutcome(out)
	}

	for _, f := range formats {
		a, err := client.Export(out, f)
		if err != nil {
			return errors.New(session.UserMessage(err))
		}
		path, err := writeFile(outputDir, a.Filename, a.Data)
		if err != nil {
			return err
		}
		ui.Success("Saved %s (%s)", path, ui.FormatBytes(int64(len(a.Data))))
	}

	if extractFlags.saveImages && out.Result.Kind == domain.ResultImages {
		for _, img := range out.Result.Images {
			path, err := writeFile(outputDir, img.Name, img.Data)
			if err != nil {
				return err
			}
			ui.Debug("Saved %s", path)
		}
		ui.Success("Saved %d images to %s", len(out.Result.Images), outputDir)
	}
	return nil
}

func buildRequest(path string) (inspector.Request, error) {
	pages, err := domain.ParsePages(extractFlags.pages)
	if err != nil {
		return inspector.Request{}, errors.New(session.UserMessage(err))
	}
	region, err := parseRegion(extractFlags.region)
	if err != nil {
		return inspector.Request{}, err
	}
	return inspector.Request{
		Backend: domain.Backend(strings.ToLower(extractFlags.backend)),
		Path:    path,
		Mode:    domain.Mode(strings.ToLower(extractFlags.mode)),
		Timeout: extractFlags.timeout,
		Options: domain.Options{
			Page:             extractFlags.page,
			Pages:            pages,
			Password:         extractFlags.password,
			LineScale:        extractFlags.lineScale,
			Query:            extractFlags.query,
			StructuredFormat: extractFlags.structuredFormat,
			Tolerance:        extractFlags.tolerance,
			MinChars:         extractFlags.minChars,
			Scale:            extractFlags.scale,
			Language:         extractFlags.language,
			Engine:           extractFlags.engine,
			Region:           region,
		},
	}, nil
}

// renderEvents prints the lifecycle events until the channel closes.
func renderEvents(events <-chan inspector.StreamEvent) {
	var bar *ui.ProgressBar
	processed, total := 0, 0
	finish := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}

	for event := range events {
		switch event.Type {
		case inspector.EventStart:
			ui.Debug("%v", event.Payload)

		case inspector.EventPageProcessing:
			if bar == nil && event.TotalPages > 0 {
				total = event.TotalPages
				bar = ui.NewProgressBar(int64(total), "Processing")
			}
			if bar != nil {
				if event.TotalPages > total {
					total = event.TotalPages
					bar.SetTotal(int64(total))
				}
				bar.Describe(fmt.Sprintf("Page %d", event.PageNumber))
				bar.Set(int64(processed))
			}
			processed++

		case inspector.EventFallback:
			finish()
			ui.Warning("Fallback: %v", event.Payload)

		case inspector.EventAdvisory:
			finish()
			ui.Warning("%v", event.Payload)

		case inspector.EventError:
			finish()
			ui.Error("%v", event.Payload)

		case inspector.EventComplete:
			finish()
			ui.Success("%v", event.Payload)
		}
	}
	finish()
}

// extractionFailed prints the alternatives of a terminal failure; the
// message itself was already shown from the error event.
func extractionFailed(err error) error {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		if len(ee.Alternatives) > 0 {
			names := make([]string, len(ee.Alternatives))
			for i, b := range ee.Alternatives {
				names[i] = string(b)
			}
			ui.Info("Try another backend: %s", strings.Join(names, ", "))
		}
		return fmt.Errorf("extraction failed (%s)", ee.Kind)
	}
	return fmt.Errorf("extraction failed")
}

func printOutcome(out *inspector.Outcome) {
	res := out.Result

	ui.Section("Result")
	ui.KeyValue("Backend", string(out.Backend))
	if out.FallbackApplied {
		ui.KeyValue("Mode", fmt.Sprintf("%s (requested %s)", out.EffectiveMode, out.RequestedMode))
	} else {
		ui.KeyValue("Mode", string(out.EffectiveMode))
	}
	ui.KeyValue("Duration", ui.FormatDuration(out.Duration))
	ui.Debug("Run %s", out.RunID)

	if res.IsEmpty() {
		return
	}

	switch res.Kind {
	case domain.ResultTables:
		printTables(res.Tables)
	case domain.ResultMatches:
		ui.Section(fmt.Sprintf("%d matches for %q", len(res.Matches), extractFlags.query))
		rows := make([][]string, len(res.Matches))
		for i, m := range res.Matches {
			rows[i] = []string{
				fmt.Sprint(m.Page), m.Text,
				fmt.Sprintf("(%.1f, %.1f)-(%.1f, %.1f)", m.Rect.X0, m.Rect.Y0, m.Rect.X1, m.Rect.Y1),
			}
		}
		ui.Table([]string{"Page", "Text", "Rect"}, rows)
	case domain.ResultAnalysis:
		ui.Section("Layout analysis")
		rows := make([][]string, len(res.Pages))
		for i, p := range res.Pages {
			rows[i] = []string{
				fmt.Sprint(p.Page), fmt.Sprintf("%dx%d", p.Width, p.Height),
				fmt.Sprint(p.Blocks), fmt.Sprint(p.Lines), fmt.Sprint(p.Words),
				fmt.Sprint(p.Tables), fmt.Sprintf("%.1f", p.Confidence),
			}
		}
		ui.Table([]string{"Page", "Size (px)", "Blocks", "Lines", "Words", "Tables", "Confidence"}, rows)
	case domain.ResultImages:
		ui.Section(fmt.Sprintf("%d images", len(res.Images)))
		rows := make([][]string, len(res.Images))
		for i, img := range res.Images {
			rows[i] = []string{
				img.Name, fmt.Sprint(img.Page), img.Format,
				fmt.Sprintf("%dx%d", img.Width, img.Height), ui.FormatBytes(int64(len(img.Data))),
			}
		}
		ui.Table([]string{"Name", "Page", "Format", "Size", "Bytes"}, rows)
	default:
		ui.Newline()
		if res.Structured != "" {
			ui.Message("%s", res.Structured)
		} else {
			ui.Message("%s", backends.JoinPages(res.Text))
		}
	}
}

func printTables(tables []domain.CanonicalTable) {
	for i, t := range tables {
		if t.Empty() {
			continue
		}
		ui.Section(fmt.Sprintf("Table %d (page %d)", i+1, t.Page))
		rows := t.Rows
		if !ui.Verbose() && len(rows) > previewRows {
			rows = rows[:previewRows]
		}
		ui.Table(t.Header, rows)
		if len(rows) < len(t.Rows) {
			ui.Message("... %d more rows (use --verbose or export to see all)", len(t.Rows)-len(rows))
		}
		if m := t.Metrics; m != nil {
			report := fmt.Sprintf("whitespace %.1f%%, order %d", m.Whitespace, m.Order)
			if m.Accuracy != nil {
				report = fmt.Sprintf("accuracy %.1f%%, %s", *m.Accuracy, report)
			}
			ui.Debug("Parsing report: %s", report)
		}
	}
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
