package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/pdf-inspector/internal/artifacts"
	"github.com/spherical/pdf-inspector/internal/export"
	"github.com/spherical/pdf-inspector/internal/history"
	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

// Inspector is the part of the inspector client the handlers use.
type Inspector interface {
	Extract(ctx context.Context, req inspector.Request, events chan<- inspector.StreamEvent) (*inspector.Outcome, error)
	Inspect(ctx context.Context, path, password string) (*inspector.Document, error)
	Backends() []inspector.BackendStatus
	Export(out *inspector.Outcome, f export.Format) (*export.Artifact, error)
}

// RunLister lists recorded runs.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]*history.Run, error)
}

// Config holds handler settings.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
}

// Handler serves the API.
type Handler struct {
	logger    *observability.Logger
	inspector Inspector
	artifacts artifacts.Store
	// history is nil when run history is disabled.
	history RunLister
	cfg     Config

	mu    sync.Mutex
	locks map[string]*documentLock
}

// NewHandler creates a handler. history may be nil.
func NewHandler(logger *observability.Logger, insp Inspector, store artifacts.Store, runs RunLister, cfg Config) *Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	return &Handler{
		logger:    logger.WithOperation("api"),
		inspector: insp,
		artifacts: store,
		history:   runs,
		cfg:       cfg,
		locks:     make(map[string]*documentLock),
	}
}

// documentLock serializes extractions of one document. The entry lives
// only while some request holds or waits for it.
type documentLock struct {
	mu   sync.Mutex
	refs int
}

// lockDocument blocks until the caller owns the document and returns the
// release function.
func (h *Handler) lockDocument(id string) func() {
	h.mu.Lock()
	l, ok := h.locks[id]
	if !ok {
		l = &documentLock{}
		h.locks[id] = l
	}
	l.refs++
	h.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		h.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, id)
		}
		h.mu.Unlock()
	}
}

func (h *Handler) heldLocks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.locks)
}

// ListBackends handles GET /api/v1/backends.
func (h *Handler) ListBackends(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"backends": h.inspector.Backends()})
}

// GetArtifact handles GET /api/v1/artifacts/{artifactId}.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "artifactId")
	a, err := h.artifacts.Get(r.Context(), id)
	if errors.Is(err, artifacts.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "artifact not found", "artifacts expire after a while; run the extraction again")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("artifact_id", id).Msg("Failed to load artifact")
		h.writeError(w, http.StatusInternalServerError, "failed to load artifact", "")
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}

// ListHistory handles GET /api/v1/history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run history is disabled", "")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "")
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}
