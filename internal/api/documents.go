package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/export"
	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/spherical/pdf-inspector/internal/pdf"
	"github.com/spherical/pdf-inspector/internal/session"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

const multipartMemory = 32 << 20

// DocumentDTO describes an uploaded document.
type DocumentDTO struct {
	ID         string        `json:"id"`
	Filename   string        `json:"filename,omitempty"`
	Size       int64         `json:"size,omitempty"`
	TotalPages int           `json:"total_pages"`
	Encrypted  bool          `json:"encrypted"`
	Pages      []domain.Page `json:"pages"`
}

// ExtractRequestDTO is the body of an extract call. Zero fields take the
// configured defaults.
type ExtractRequestDTO struct {
	Backend          domain.Backend `json:"backend"`
	Mode             domain.Mode    `json:"mode"`
	Page             int            `json:"page,omitempty"`
	Pages            string         `json:"pages,omitempty"`
	Password         string         `json:"password,omitempty"`
	LineScale        int            `json:"line_scale,omitempty"`
	Query            string         `json:"query,omitempty"`
	StructuredFormat string         `json:"structured_format,omitempty"`
	Tolerance        float64        `json:"tolerance,omitempty"`
	MinChars         int            `json:"min_chars,omitempty"`
	Scale            float64        `json:"scale,omitempty"`
	Language         string         `json:"language,omitempty"`
	Engine           string         `json:"engine,omitempty"`
	Region           *geometry.Rect `json:"region,omitempty"`
	Timeout          string         `json:"timeout,omitempty"`
	Formats          []string       `json:"formats,omitempty"`
}

// ArtifactDTO points at a stored export.
type ArtifactDTO struct {
	ID          string        `json:"id"`
	Format      export.Format `json:"format"`
	Filename    string        `json:"filename"`
	ContentType string        `json:"content_type"`
	URL         string        `json:"url"`
}

// ExtractResponseDTO is the result of an extract call.
type ExtractResponseDTO struct {
	Outcome   *inspector.Outcome   `json:"outcome"`
	Events    []domain.StreamEvent `json:"events"`
	Artifacts []ArtifactDTO        `json:"artifacts,omitempty"`
}

// ExtractErrorDTO is returned when an extraction fails.
type ExtractErrorDTO struct {
	Error        string             `json:"error"`
	Message      string             `json:"message"`
	Kind         domain.ErrorKind   `json:"kind,omitempty"`
	Backend      domain.Backend     `json:"backend,omitempty"`
	Alternatives []domain.Backend   `json:"alternatives,omitempty"`
	Outcome      *inspector.Outcome `json:"outcome,omitempty"`
}

func (h *Handler) documentPath(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	path := filepath.Join(h.cfg.UploadDir, id+".pdf")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Upload handles POST /api/v1/documents with a multipart "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file too large",
				fmt.Sprintf("uploads are limited to %d bytes", h.cfg.MaxUploadBytes))
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file", "send the PDF in a form field named \"file\"")
		return
	}
	defer file.Close()

	ok, err := pdf.SniffPDF(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}
	if !ok {
		h.writeError(w, http.StatusUnsupportedMediaType, "not a PDF", "the upload does not start with a PDF header")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read upload", "")
		return
	}

	id := uuid.New()
	path, size, err := h.store(id, file)
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", id.String()).Msg("Failed to store upload")
		h.writeError(w, http.StatusInternalServerError, "failed to store upload", "")
		return
	}

	dto := DocumentDTO{ID: id.String(), Filename: header.Filename, Size: size, Pages: []domain.Page{}}
	doc, err := h.inspector.Inspect(r.Context(), path, r.FormValue("password"))
	switch {
	case err == nil:
		dto.TotalPages = doc.TotalPages
		dto.Encrypted = doc.Encrypted
		dto.Pages = doc.Pages
	case domain.IsKind(err, domain.KindPasswordProtected):
		// Kept: extraction calls can still supply the password.
		dto.Encrypted = true
	default:
		os.Remove(path)
		h.writeError(w, http.StatusUnprocessableEntity, "the document could not be read", session.UserMessage(err))
		return
	}

	h.logger.Info().
		Str("document_id", dto.ID).
		Str("filename", header.Filename).
		Int64("bytes", size).
		Int("pages", dto.TotalPages).
		Msg("Document uploaded")
	h.writeJSON(w, http.StatusCreated, dto)
}

// store writes the upload as <upload dir>/<id>.pdf via a temp file.
func (h *Handler) store(id uuid.UUID, src io.Reader) (string, int64, error) {
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(h.cfg.UploadDir, "upload-*.part")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write upload: %w", err)
	}

	path := filepath.Join(h.cfg.UploadDir, id.String()+".pdf")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("install upload: %w", err)
	}
	return path, n, nil
}

// GetDocument handles GET /api/v1/documents/{documentId}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentId")
	path, ok := h.documentPath(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "document not found", "")
		return
	}

	doc, err := h.inspector.Inspect(r.Context(), path, r.URL.Query().Get("password"))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if domain.IsKind(err, domain.KindPasswordProtected) {
			status = http.StatusUnauthorized
		}
		h.writeError(w, status, "the document could not be read", session.UserMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, DocumentDTO{
		ID:         id,
		TotalPages: doc.TotalPages,
		Encrypted:  doc.Encrypted,
		Pages:      doc.Pages,
	})
}

// Extract handles POST /api/v1/documents/{documentId}/extract. Extractions
// of the same document run one at a time.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentId")
	path, ok := h.documentPath(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "document not found", "")
		return
	}

	var body ExtractRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req, formats, err := body.toRequest(path)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, session.UserMessage(err), "")
		return
	}

	unlock := h.lockDocument(id)
	defer unlock()

	events := make(chan domain.StreamEvent, 256)
	out, err := h.inspector.Extract(r.Context(), req, events)
	close(events)
	collected := []domain.StreamEvent{}
	for ev := range events {
		collected = append(collected, ev)
	}

	if err != nil {
		h.writeExtractionError(w, out, err)
		return
	}

	resp := ExtractResponseDTO{Outcome: out, Events: collected}
	for _, f := range formats {
		a, err := h.inspector.Export(out, f)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, session.UserMessage(err), "")
			return
		}
		artifactID, err := h.artifacts.Put(r.Context(), a)
		if err != nil {
			h.logger.Error().Err(err).Str("format", string(f)).Msg("Failed to store artifact")
			h.writeError(w, http.StatusInternalServerError, "failed to store export", "")
			return
		}
		resp.Artifacts = append(resp.Artifacts, ArtifactDTO{
			ID:          artifactID,
			Format:      f,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         "/api/v1/artifacts/" + artifactID,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (b ExtractRequestDTO) toRequest(path string) (inspector.Request, []export.Format, error) {
	req := inspector.Request{
		Backend: b.Backend,
		Path:    path,
		Mode:    b.Mode,
		Options: domain.Options{
			Page:             b.Page,
			Password:         b.Password,
			LineScale:        b.LineScale,
			Query:            b.Query,
			StructuredFormat: b.StructuredFormat,
			Tolerance:        b.Tolerance,
			MinChars:         b.MinChars,
			Scale:            b.Scale,
			Language:         b.Language,
			Engine:           b.Engine,
			Region:           b.Region,
		},
	}
	if req.Backend == "" || req.Mode == "" {
		return req, nil, domain.ValidationError("backend and mode are required", nil)
	}

	pages, err := domain.ParsePages(b.Pages)
	if err != nil {
		return req, nil, err
	}
	req.Options.Pages = pages

	if b.Timeout != "" {
		d, err := time.ParseDuration(b.Timeout)
		if err != nil || d <= 0 {
			return req, nil, domain.ValidationError(fmt.Sprintf("invalid timeout %q", b.Timeout), err)
		}
		req.Timeout = d
	}

	formats := make([]export.Format, 0, len(b.Formats))
	for _, s := range b.Formats {
		f, err := export.ParseFormat(s)
		if err != nil {
			return req, nil, err
		}
		formats = append(formats, f)
	}
	return req, formats, nil
}

func (h *Handler) writeExtractionError(w http.ResponseWriter, out *inspector.Outcome, err error) {
	msg := session.UserMessage(err)
	resp := ExtractErrorDTO{Error: msg, Message: msg, Outcome: out}

	var ee *domain.ExtractionError
	status := http.StatusBadRequest
	if errors.As(err, &ee) {
		resp.Kind = ee.Kind
		resp.Backend = ee.Backend
		resp.Alternatives = ee.Alternatives
		if !domain.IsErrorType(err, domain.ErrorTypeValidation) {
			status = statusFor(ee.Kind)
		}
	}
	h.writeJSON(w, status, resp)
}

// statusFor maps an extraction error kind to an HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnavailableDependency, domain.KindModelVocabularyMismatch:
		return http.StatusServiceUnavailable
	case domain.KindMalformedDocument, domain.KindDegenerateGeometryFault:
		return http.StatusUnprocessableEntity
	case domain.KindPasswordProtected:
		return http.StatusUnauthorized
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
