// Package fallback runs one extraction attempt and, for the lattice/stream
// table family, at most one substitute attempt.
package fallback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/observability"
)

// State is a node of the fallback state machine.
type State string

const (
	StateRequested      State = "requested"
	StateProbed         State = "probed"
	StateRunning        State = "running"
	StateSucceeded      State = "succeeded"
	StateFailedRetrying State = "failed_retrying"
	StateFailedTerminal State = "failed_terminal"
)

// Transition is one step recorded in an Outcome trace.
type Transition struct {
	From   State            `json:"from"`
	To     State            `json:"to"`
	Mode   domain.Mode      `json:"mode"`
	Reason string           `json:"reason,omitempty"`
	Kind   domain.ErrorKind `json:"error_kind,omitempty"`
	At     time.Time        `json:"at"`
}

// Request describes one orchestrated call.
type Request struct {
	Adapter domain.Adapter
	Path    string
	Mode    domain.Mode
	Options domain.Options
	// OnTransition observes every state change as it happens.
	OnTransition func(Transition)
}

// Outcome is what the engine did. It is returned on failure too so callers
// can report the trace.
type Outcome struct {
	Result          *domain.ExtractionResult
	RequestedMode   domain.Mode
	EffectiveMode   domain.Mode
	FallbackApplied bool
	Attempts        int
	Advisories      []string
	Trace           []Transition
	State           State
}

// Engine applies the fallback rules.
type Engine struct {
	prober       domain.Prober
	alternatives []domain.Backend
	logger       *observability.Logger
}

// DefaultAlternatives are suggested when a table backend fails terminally.
var DefaultAlternatives = []domain.Backend{domain.BackendPlumber, domain.BackendMuPDF}

// NewEngine creates an engine. alternatives defaults to DefaultAlternatives.
func NewEngine(prober domain.Prober, logger *observability.Logger, alternatives ...domain.Backend) *Engine {
	if logger == nil {
		logger = observability.Nop()
	}
	if len(alternatives) == 0 {
		alternatives = DefaultAlternatives
	}
	return &Engine{prober: prober, alternatives: alternatives, logger: logger}
}

type run struct {
	req     Request
	out     *Outcome
	state   State
	backend domain.Backend
}

func (r *run) move(to State, mode domain.Mode, reason string, kind domain.ErrorKind) {
	t := Transition{From: r.state, To: to, Mode: mode, Reason: reason, Kind: kind, At: time.Now()}
	r.out.Trace = append(r.out.Trace, t)
	r.out.State = to
	r.state = to
	if r.req.OnTransition != nil {
		r.req.OnTransition(t)
	}
}

// Run executes the request. On failure the returned error is always a
// *domain.ExtractionError and the Outcome carries the trace.
//
// Rules, applied only to a lattice request whose adapter also offers stream:
//  1. a lattice-only requirement is missing: run stream directly and advise.
//  2. lattice fails with UnavailableDependency: retry once with stream.
//  3. DegenerateGeometryFault is terminal on any attempt.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	backend := req.Adapter.Name()
	r := &run{
		req:     req,
		backend: backend,
		state:   StateRequested,
		out: &Outcome{
			RequestedMode: req.Mode,
			EffectiveMode: req.Mode,
			State:         StateRequested,
		},
	}
	log := e.logger.WithOperation("fallback").WithBackend(string(backend))

	canFallBack := req.Mode == domain.ModeLattice && supports(req.Adapter, domain.ModeStream)

	missing := e.missing(req.Adapter.Requirements(req.Mode))
	mode := req.Mode
	if len(missing) > 0 {
		shared := e.missing(req.Adapter.Requirements(domain.ModeStream))
		if !canFallBack || len(shared) > 0 {
			err := domain.UnavailableDependency(backend,
				fmt.Sprintf("%s is not installed", joinNames(missing)), nil)
			r.move(StateProbed, mode, err.Message, err.Kind)
			return e.fail(r, err)
		}
		advisory := fmt.Sprintf("%s is not installed, so %s mode is unavailable. Used %s mode instead",
			joinNames(missing), domain.ModeLattice, domain.ModeStream)
		r.out.Advisories = append(r.out.Advisories, advisory)
		r.out.FallbackApplied = true
		mode = domain.ModeStream
		r.move(StateProbed, mode, advisory, domain.KindUnavailableDependency)
		log.Warn().Strs("missing", missing).Msg("Lattice requirement missing, running stream")
	} else {
		r.move(StateProbed, mode, "", "")
	}

	res, err := e.attempt(ctx, r, mode)
	if err == nil {
		return e.succeed(r, res, mode)
	}

	if canFallBack && mode == domain.ModeLattice && err.Kind == domain.KindUnavailableDependency {
		reason := fmt.Sprintf("%s mode failed: %s. Retried with %s mode", domain.ModeLattice, err.Message, domain.ModeStream)
		r.out.Advisories = append(r.out.Advisories, reason)
		r.out.FallbackApplied = true
		r.move(StateFailedRetrying, domain.ModeStream, reason, err.Kind)
		log.Warn().Err(err).Msg("Lattice failed on a missing dependency, retrying with stream")

		res, err = e.attempt(ctx, r, domain.ModeStream)
		if err == nil {
			return e.succeed(r, res, domain.ModeStream)
		}
	}

	return e.fail(r, err)
}

func (e *Engine) attempt(ctx context.Context, r *run, mode domain.Mode) (*domain.ExtractionResult, *domain.ExtractionError) {
	r.out.Attempts++
	r.out.EffectiveMode = mode
	r.move(StateRunning, mode, "", "")

	res, err := r.req.Adapter.Extract(ctx, r.req.Path, mode, r.req.Options)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, domain.Timeout(r.backend, err)
		}
		return nil, domain.Classify(r.backend, err)
	}
	if res == nil {
		return nil, domain.BackendInternal(r.backend, "the backend returned no result", nil)
	}
	return res, nil
}

func (e *Engine) succeed(r *run, res *domain.ExtractionResult, mode domain.Mode) (*Outcome, error) {
	r.move(StateSucceeded, mode, "", "")
	res.Advisories = append(append([]string(nil), r.out.Advisories...), res.Advisories...)
	r.out.Result = res
	return r.out, nil
}

func (e *Engine) fail(r *run, err *domain.ExtractionError) (*Outcome, error) {
	if len(err.Alternatives) == 0 {
		err.Alternatives = e.alternativesFor(r.backend)
	}
	r.move(StateFailedTerminal, r.out.EffectiveMode, err.Message, err.Kind)
	e.logger.WithBackend(string(r.backend)).Error().
		Str("kind", string(err.Kind)).
		Str("mode", string(r.out.EffectiveMode)).
		Int("attempts", r.out.Attempts).
		Err(err).
		Msg("Extraction failed")
	return r.out, err
}

func (e *Engine) missing(reqs []domain.Requirement) []string {
	var out []string
	for _, req := range reqs {
		if e.prober == nil || !e.prober.Available(req.Executables...) {
			out = append(out, req.Name)
		}
	}
	return out
}

func (e *Engine) alternativesFor(failed domain.Backend) []domain.Backend {
	var out []domain.Backend
	for _, b := range e.alternatives {
		if b != failed {
			out = append(out, b)
		}
	}
	return out
}

func supports(a domain.Adapter, mode domain.Mode) bool {
	for _, m := range a.Modes() {
		if m == mode {
			return true
		}
	}
	return false
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
