package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeExport     ErrorType = "export"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

// IsErrorType reports whether err is a DomainError of type t.
func IsErrorType(err error, t ErrorType) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Type == t
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func ExportError(message string, err error) *DomainError {
	return NewError(ErrorTypeExport, message, err)
}

// ErrorKind classifies extraction failures. Fallback decisions are taken on
// the kind alone.
type ErrorKind string

const (
	KindUnavailableDependency   ErrorKind = "unavailable_dependency"
	KindMalformedDocument       ErrorKind = "malformed_document"
	KindPasswordProtected       ErrorKind = "password_protected"
	KindDegenerateGeometryFault ErrorKind = "degenerate_geometry_fault"
	KindModelVocabularyMismatch ErrorKind = "model_vocabulary_mismatch"
	KindBackendInternal         ErrorKind = "backend_internal"
	KindTimeout                 ErrorKind = "timeout"
)

// VocabularyMismatchRemediation is shown whenever cached recognition weights
// cannot be used by the installed recognizer.
const VocabularyMismatchRemediation = "The cached recognition model does not match the installed recognizer. Use the tesseract engine instead."

// ExtractionError is the structured failure every adapter returns.
type ExtractionError struct {
	Kind         ErrorKind
	Backend      Backend
	Message      string
	Hint         string
	Alternatives []Backend
	Err          error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Backend != "" {
		fmt.Fprintf(&b, " %s:", e.Backend)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to an end user: never the wrapped cause.
func (e *ExtractionError) UserMessage() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + ". " + e.Hint
}

// NewExtractionError creates a classified extraction error
func NewExtractionError(kind ErrorKind, backend Backend, message string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:    kind,
		Backend: backend,
		Message: message,
		Hint:    defaultHint(kind),
		Err:     err,
	}
}

func UnavailableDependency(backend Backend, message string, err error) *ExtractionError {
	return NewExtractionError(KindUnavailableDependency, backend, message, err)
}

func MalformedDocument(backend Backend, message string, err error) *ExtractionError {
	return NewExtractionError(KindMalformedDocument, backend, message, err)
}

func PasswordProtected(backend Backend, message string, err error) *ExtractionError {
	return NewExtractionError(KindPasswordProtected, backend, message, err)
}

func DegenerateGeometry(backend Backend, message string, err error) *ExtractionError {
	return NewExtractionError(KindDegenerateGeometryFault, backend, message, err)
}

func ModelVocabularyMismatch(backend Backend, err error) *ExtractionError {
	e := NewExtractionError(KindModelVocabularyMismatch, backend, "recognition model vocabulary mismatch", err)
	e.Hint = VocabularyMismatchRemediation
	return e
}

func BackendInternal(backend Backend, message string, err error) *ExtractionError {
	return NewExtractionError(KindBackendInternal, backend, message, err)
}

func Timeout(backend Backend, err error) *ExtractionError {
	return NewExtractionError(KindTimeout, backend, "extraction timed out", err)
}

// WithHint replaces the hint.
func (e *ExtractionError) WithHint(hint string) *ExtractionError {
	e.Hint = hint
	return e
}

// WithAlternatives sets the suggested substitute backends.
func (e *ExtractionError) WithAlternatives(alts ...Backend) *ExtractionError {
	e.Alternatives = alts
	return e
}

func defaultHint(kind ErrorKind) string {
	switch kind {
	case KindUnavailableDependency:
		return "Install the missing dependency or choose another backend"
	case KindMalformedDocument:
		return "The document could not be parsed; try a different backend"
	case KindPasswordProtected:
		return "Supply the document password"
	case KindDegenerateGeometryFault:
		return "The page geometry is incompatible with this table algorithm; try a different backend"
	case KindTimeout:
		return "Try a smaller page range or raise the extraction timeout"
	default:
		return ""
	}
}

// KindOf returns the classification carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

// IsKind reports whether err is an ExtractionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Classify converts any error leaving an adapter into an ExtractionError.
// Unknown errors become BackendInternal with a generic message; a wrapped
// DomainError keeps its message and stays reachable through Unwrap.
func Classify(backend Backend, err error) *ExtractionError {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		if ee.Backend == "" {
			ee.Backend = backend
		}
		return ee
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(backend, err)
	}
	var de *DomainError
	if errors.As(err, &de) {
		return BackendInternal(backend, de.Message, err).WithHint("")
	}
	return BackendInternal(backend, "the backend failed unexpectedly", err)
}
