// Package session orchestrates one extraction from request to recorded
// outcome: validation, backend routing, fallback, advisories and history.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/pdf-inspector/internal/backends"
	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/export"
	"github.com/spherical/pdf-inspector/internal/fallback"
	"github.com/spherical/pdf-inspector/internal/history"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/internal/probe"
)

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, run *history.Run) error
}

// PathValidator checks the input file before any backend sees it.
type PathValidator interface {
	ValidatePDFPath(path string) error
}

// Config wires a Session.
type Config struct {
	Registry  *backends.Registry
	Engine    *fallback.Engine
	Validator PathValidator
	// History is optional.
	History Recorder
	// Timeout bounds each extraction unless the request sets its own; zero
	// means no deadline.
	Timeout time.Duration
	Logger  *observability.Logger
}

// Request is one extraction call.
type Request struct {
	Backend domain.Backend
	Path    string
	Mode    domain.Mode
	Options domain.Options
	Timeout time.Duration
}

// Outcome is a completed extraction.
type Outcome struct {
	RunID           string                   `json:"run_id"`
	Document        string                   `json:"document"`
	Backend         domain.Backend           `json:"backend"`
	Result          *domain.ExtractionResult `json:"result,omitempty"`
	RequestedMode   domain.Mode              `json:"requested_mode"`
	EffectiveMode   domain.Mode              `json:"effective_mode"`
	FallbackApplied bool                     `json:"fallback_applied"`
	Advisories      []string                 `json:"advisories,omitempty"`
	Trace           []fallback.Transition    `json:"trace"`
	Duration        time.Duration            `json:"duration"`
}

// Session runs one extraction at a time.
type Session struct {
	cfg    Config
	mu     sync.Mutex
	logger *observability.Logger
}

// New creates a session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	if cfg.Engine == nil {
		cfg.Engine = fallback.NewEngine(probe.Default(), logger)
	}
	return &Session{cfg: cfg, logger: logger.WithOperation("extract")}
}

// Extract validates and runs req. Events, if a channel is given, mirror the
// lifecycle; a full channel drops events rather than blocking. On failure
// the error is a *domain.ExtractionError or a validation DomainError, and
// the partial Outcome still carries the trace.
func (s *Session) Extract(ctx context.Context, req Request, events chan<- domain.StreamEvent) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out := &Outcome{
		RunID:         uuid.NewString(),
		Document:      req.Path,
		Backend:       req.Backend,
		RequestedMode: req.Mode,
		EffectiveMode: req.Mode,
	}
	log := s.logger.WithContext(ctx).With().
		Str("backend", string(req.Backend)).
		Str("run_id", out.RunID).
		Logger()

	s.emit(events, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting %s %s extraction of %s", req.Backend, req.Mode, req.Path),
		Timestamp: time.Now(),
	})

	adapter, opts, err := s.prepare(req)
	if err != nil {
		s.emitError(events, err)
		return out, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.cfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	userProgress := opts.OnPage
	opts.OnPage = func(page, total int) {
		s.emit(events, domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			PageNumber: page,
			TotalPages: total,
			Payload:    fmt.Sprintf("Processing page %d", page),
			Timestamp:  time.Now(),
		})
		if userProgress != nil {
			userProgress(page, total)
		}
	}

	log.Info().Str("mode", string(req.Mode)).Str("path", req.Path).Msg("Extraction started")

	run, runErr := s.cfg.Engine.Run(ctx, fallback.Request{
		Adapter: adapter,
		Path:    req.Path,
		Mode:    req.Mode,
		Options: opts,
		OnTransition: func(t fallback.Transition) {
			if t.To == fallback.StateFailedRetrying || (t.To == fallback.StateProbed && t.Mode != req.Mode) {
				s.emit(events, domain.StreamEvent{Type: domain.EventFallback, Payload: t.Reason, Timestamp: t.At})
			}
		},
	})
	out.Duration = time.Since(start)
	if run != nil {
		out.EffectiveMode = run.EffectiveMode
		out.FallbackApplied = run.FallbackApplied
		out.Trace = run.Trace
	}

	if runErr != nil {
		ee := domain.Classify(req.Backend, runErr)
		s.record(ctx, out, ee)
		s.emitError(events, ee)
		log.Error().Str("kind", string(ee.Kind)).Dur("duration", out.Duration).Err(ee).Msg("Extraction failed")
		return out, ee
	}

	res := run.Result
	if res.IsEmpty() {
		res.AddAdvisory(noResults(res, opts))
	}
	out.Result = res
	out.Advisories = res.Advisories
	for _, a := range out.Advisories {
		s.emit(events, domain.StreamEvent{Type: domain.EventAdvisory, Payload: a, Timestamp: time.Now()})
	}

	s.record(ctx, out, nil)
	s.emit(events, domain.StreamEvent{
		Type:      domain.EventComplete,
		Payload:   fmt.Sprintf("Extraction complete in %v", out.Duration.Round(time.Millisecond)),
		Timestamp: time.Now(),
	})
	log.Info().
		Str("effective_mode", string(out.EffectiveMode)).
		Bool("fallback", out.FallbackApplied).
		Int("tables", len(res.Tables)).
		Dur("duration", out.Duration).
		Msg("Extraction complete")
	return out, nil
}

func (s *Session) prepare(req Request) (domain.Adapter, domain.Options, error) {
	opts := req.Options.WithDefaults()
	if s.cfg.Validator != nil {
		if err := s.cfg.Validator.ValidatePDFPath(req.Path); err != nil {
			return nil, opts, err
		}
	}
	if s.cfg.Registry == nil {
		return nil, opts, domain.ConfigError("no backends are registered", nil)
	}
	adapter, err := s.cfg.Registry.Get(req.Backend)
	if err != nil {
		return nil, opts, err
	}
	if err := backends.CheckMode(adapter, req.Mode); err != nil {
		return nil, opts, err
	}
	if err := opts.Validate(); err != nil {
		return nil, opts, err
	}
	return adapter, opts, nil
}

// noResults words the advisory for an empty but well-formed result.
func noResults(res *domain.ExtractionResult, opts domain.Options) string {
	switch res.Kind {
	case domain.ResultTables:
		return "No tables found"
	case domain.ResultMatches:
		return fmt.Sprintf("No matches found for %q", opts.Query)
	case domain.ResultImages:
		return "No images found"
	case domain.ResultAnalysis:
		return "No pages analyzed"
	default:
		return "No text found"
	}
}

func (s *Session) record(ctx context.Context, out *Outcome, failure *domain.ExtractionError) {
	if s.cfg.History == nil {
		return
	}
	run := &history.Run{
		Document:        out.Document,
		Backend:         out.Backend,
		RequestedMode:   out.RequestedMode,
		EffectiveMode:   out.EffectiveMode,
		FallbackApplied: out.FallbackApplied,
		Status:          history.StatusSucceeded,
		DurationMS:      out.Duration.Milliseconds(),
	}
	if id, err := uuid.Parse(out.RunID); err == nil {
		run.ID = id
	}
	if failure != nil {
		run.Status = history.StatusFailed
		run.ErrorKind = failure.Kind
	}
	if out.Result != nil {
		for _, t := range out.Result.Tables {
			if !t.Empty() {
				run.Tables++
			}
		}
	}

	// The extraction deadline may already have passed.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.cfg.History.Record(rctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", out.RunID).Msg("Failed to record run")
	}
}

// Export serializes a successful outcome.
func (s *Session) Export(out *Outcome, format export.Format) (*export.Artifact, error) {
	if out == nil || out.Result == nil {
		return nil, domain.ExportError("the extraction produced no result to export", nil)
	}
	return export.Serialize(out.Document, out.Result, format)
}

// UserMessage is the text to show for an extraction failure.
func UserMessage(err error) string {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return ee.UserMessage()
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// emit sends an event without blocking.
func (s *Session) emit(events chan<- domain.StreamEvent, event domain.StreamEvent) {
	if events == nil {
		return
	}
	select {
	case events <- event:
	default:
		s.logger.Warn().Str("type", string(event.Type)).Msg("Event channel full, dropping event")
	}
}

func (s *Session) emitError(events chan<- domain.StreamEvent, err error) {
	s.emit(events, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   UserMessage(err),
		Timestamp: time.Now(),
	})
}
