// Package inspector is the entry point for embedding the PDF inspector: it
// wires the backend adapters, fallback engine, history and artifact stores
// from a configuration and hands out extraction sessions.
package inspector

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spherical/pdf-inspector/internal/artifacts"
	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/backends/camelot"
	"github.com/spherical/pdf-inspector/internal/backends/mupdf"
	"github.com/spherical/pdf-inspector/internal/backends/ocr"
	"github.com/spherical/pdf-inspector/internal/backends/plumber"
	"github.com/spherical/pdf-inspector/internal/backends/poppler"
	"github.com/spherical/pdf-inspector/internal/backends/tabula"
	"github.com/spherical/pdf-inspector/internal/config"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/export"
	"github.com/spherical/pdf-inspector/internal/fallback"
	"github.com/spherical/pdf-inspector/internal/history"
	"github.com/spherical/pdf-inspector/internal/modelcache"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/pdf"
	"github.com/spherical/pdf-inspector/internal/probe"
	"github.com/spherical/pdf-inspector/internal/runner"
	"github.com/spherical/pdf-inspector/internal/session"
)

// Re-export the types callers handle directly.
type (
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
	Options     = domain.Options
	Document    = domain.Document
	Request     = session.Request
	Outcome     = session.Outcome
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventFallback       = domain.EventFallback
	EventAdvisory       = domain.EventAdvisory
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Client owns every long-lived component.
type Client struct {
	cfg       *config.Config
	logger    *observability.Logger
	probe     *probe.Cache
	registry  *backends.Registry
	engine    *fallback.Engine
	validator *pdf.Validator
	documents *pdf.Inspector
	models    *modelcache.Cache
	db        *sql.DB
	history   *history.Store
	artifacts artifacts.Store
}

type settings struct {
	logger     *observability.Logger
	probe      *probe.Cache
	runner     runner.Runner
	recognizer ocr.Recognizer
	renderer   pdf.Renderer
	noHistory  bool
	artifacts  artifacts.Store
}

// Option customizes New.
type Option func(*settings)

// WithLogger sets the logger shared by all components.
func WithLogger(logger *observability.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithProbe replaces the process-wide availability cache.
func WithProbe(p *probe.Cache) Option {
	return func(s *settings) { s.probe = p }
}

// WithRunner replaces the external process runner used by camelot and tabula.
func WithRunner(r runner.Runner) Option {
	return func(s *settings) { s.runner = r }
}

// WithRecognizer replaces the OCR recognizer.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(s *settings) { s.recognizer = r }
}

// WithRenderer replaces the page renderer used by the OCR backends.
func WithRenderer(r pdf.Renderer) Option {
	return func(s *settings) { s.renderer = r }
}

// WithoutHistory disables the run history database.
func WithoutHistory() Option {
	return func(s *settings) { s.noHistory = true }
}

// WithArtifactStore replaces the store configured under cache.
func WithArtifactStore(store artifacts.Store) Option {
	return func(s *settings) { s.artifacts = store }
}

// New builds a client from cfg. The history database is opened and
// migrated here; Close releases it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, domain.ConfigError("configuration is required", nil)
	}
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = observability.Nop()
	}
	if s.probe == nil {
		s.probe = probe.Default()
	}
	if s.runner == nil {
		s.runner = runner.New(s.logger, cfg.Engines.StderrLimit)
	}

	c := &Client{
		cfg:       cfg,
		logger:    s.logger.WithOperation("inspector"),
		probe:     s.probe,
		validator: pdf.NewValidator(s.logger),
		documents: pdf.NewInspector(s.logger),
		models: modelcache.New(cfg.OCR.CacheDir, cfg.OCR.WeightsBaseURL, s.logger,
			modelcache.WithRetry(&modelcache.RetryConfig{
				MaxRetries:     cfg.OCR.DownloadRetries,
				InitialBackoff: modelcache.DefaultRetryConfig().InitialBackoff,
				MaxBackoff:     modelcache.DefaultRetryConfig().MaxBackoff,
			}),
			modelcache.WithTimeout(cfg.OCR.DownloadTimeout)),
	}

	ocrCfg := ocr.Config{
		Renderer:       s.renderer,
		Recognizer:     s.recognizer,
		Models:         c.models,
		TessdataPrefix: cfg.OCR.TessdataPrefix,
	}
	c.registry = backends.NewRegistry(
		mupdf.New(s.logger),
		plumber.New(s.logger),
		poppler.New(cfg.Engines.Pdftotext, s.logger),
		camelot.New(cfg.Engines.Python, cfg.Engines.Ghostscript, s.runner, s.logger),
		tabula.New(cfg.Engines.Java, cfg.Engines.TabulaJar, s.runner, s.logger),
		ocr.NewTables(ocrCfg, s.logger),
		ocr.NewLayout(ocrCfg, s.logger),
	)
	c.engine = fallback.NewEngine(c.probe, s.logger)

	if !s.noHistory {
		db, err := history.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		store := history.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		c.db = db
		c.history = store
	}

	c.artifacts = s.artifacts
	if c.artifacts == nil {
		store, err := artifacts.New(cfg.Cache)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.artifacts = store
	}

	c.logger.Debug().
		Int("backends", len(c.registry.List())).
		Bool("history", c.history != nil).
		Str("cache", cfg.Cache.Driver).
		Msg("Inspector ready")
	return c, nil
}

// Session returns a new extraction session. Sessions share the adapters,
// probe cache and history store but each runs one extraction at a time.
func (c *Client) Session() *session.Session {
	cfg := session.Config{
		Registry:  c.registry,
		Engine:    c.engine,
		Validator: c.validator,
		Timeout:   c.cfg.Extraction.Timeout,
		Logger:    c.logger,
	}
	if c.history != nil {
		cfg.History = c.history
	}
	return session.New(cfg)
}

// Extract runs req in a fresh session with the configured defaults applied.
func (c *Client) Extract(ctx context.Context, req Request, events chan<- StreamEvent) (*Outcome, error) {
	req.Options = c.Defaults(req.Options)
	return c.Session().Extract(ctx, req, events)
}

// Export serializes a successful outcome in format f.
func (c *Client) Export(out *Outcome, f export.Format) (*export.Artifact, error) {
	return c.Session().Export(out, f)
}

// Defaults fills the zero fields of opts from the extraction config.
func (c *Client) Defaults(opts Options) Options {
	e := c.cfg.Extraction
	if opts.Tolerance == 0 {
		opts.Tolerance = e.Tolerance
	}
	if opts.MinChars == 0 {
		opts.MinChars = e.MinChars
	}
	if opts.LineScale == 0 {
		opts.LineScale = e.LineScale
	}
	if opts.Scale == 0 {
		opts.Scale = e.Scale
	}
	if opts.Language == "" {
		opts.Language = e.Language
	}
	return opts.WithDefaults()
}

// ModeStatus tells whether a mode can run on this machine.
type ModeStatus struct {
	Mode      domain.Mode `json:"mode"`
	Available bool        `json:"available"`
	Missing   []string    `json:"missing,omitempty"`
}

// BackendStatus describes one registered backend.
type BackendStatus struct {
	Name      domain.Backend `json:"name"`
	Family    domain.Family  `json:"family"`
	Available bool           `json:"available"`
	Modes     []ModeStatus   `json:"modes"`
}

// Backends lists the adapters in presentation order with the requirement
// probe applied per mode. A backend is available when any mode is.
func (c *Client) Backends() []BackendStatus {
	var out []BackendStatus
	for _, a := range c.registry.List() {
		bs := BackendStatus{Name: a.Name(), Family: a.Family()}
		for _, m := range a.Modes() {
			ms := ModeStatus{Mode: m, Available: true}
			for _, req := range a.Requirements(m) {
				if !c.probe.Available(req.Executables...) {
					ms.Available = false
					ms.Missing = append(ms.Missing, req.Name)
				}
			}
			if ms.Available {
				bs.Available = true
			}
			bs.Modes = append(bs.Modes, ms)
		}
		out = append(out, bs)
	}
	return out
}

// Inspect reads the page count and page sizes of the document at path.
func (c *Client) Inspect(ctx context.Context, path, password string) (*Document, error) {
	return c.documents.Inspect(ctx, path, password)
}

// ValidatePath checks that path names a readable PDF.
func (c *Client) ValidatePath(path string) error {
	return c.validator.ValidatePDFPath(path)
}

// Registry exposes the registered adapters.
func (c *Client) Registry() *backends.Registry { return c.registry }

// Probe exposes the availability cache.
func (c *Client) Probe() *probe.Cache { return c.probe }

// Models exposes the OCR weights cache.
func (c *Client) Models() *modelcache.Cache { return c.models }

// History returns the run store, or nil when history is disabled.
func (c *Client) History() *history.Store { return c.history }

// Artifacts exposes the export artifact store.
func (c *Client) Artifacts() artifacts.Store { return c.artifacts }

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config { return c.cfg }

// Close releases the database and the artifact store.
func (c *Client) Close() error {
	var errs []error
	if c.artifacts != nil {
		errs = append(errs, c.artifacts.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
