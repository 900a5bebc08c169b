package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{
			name: "without cause",
			err:  ValidationError("file path cannot be empty", nil),
			want: "[validation] file path cannot be empty",
		},
		{
			name: "with cause",
			err:  IOError("cannot write artifact", errors.New("disk full")),
			want: "[io] cannot write artifact: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestExtractionError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("gs: not found")
	err := UnavailableDependency(BackendCamelot, "Ghostscript is not installed", cause)

	assert.Equal(t, "[unavailable_dependency] camelot: Ghostscript is not installed: gs: not found", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Ghostscript is not installed. Install the missing dependency or choose another backend", err.UserMessage())
}

func TestModelVocabularyMismatch_FixedRemediation(t *testing.T) {
	err := ModelVocabularyMismatch(BackendOCRLayout, errors.New("Failed loading language 'eng'"))

	assert.Equal(t, KindModelVocabularyMismatch, err.Kind)
	assert.Equal(t, VocabularyMismatchRemediation, err.Hint)
	assert.NotContains(t, err.UserMessage(), "Failed loading language")
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("stream retry: %w", DegenerateGeometry(BackendCamelot, "division by zero", nil))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindDegenerateGeometryFault, kind)
	assert.True(t, IsKind(wrapped, KindDegenerateGeometryFault))
	assert.False(t, IsKind(wrapped, KindUnavailableDependency))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    ErrorKind
		backend Backend
	}{
		{
			name:    "already classified keeps its kind",
			err:     PasswordProtected(BackendTabula, "document is encrypted", nil),
			want:    KindPasswordProtected,
			backend: BackendTabula,
		},
		{
			name:    "unset backend is filled in",
			err:     &ExtractionError{Kind: KindMalformedDocument, Message: "bad xref"},
			want:    KindMalformedDocument,
			backend: BackendMuPDF,
		},
		{
			name:    "deadline becomes timeout",
			err:     fmt.Errorf("run camelot: %w", context.DeadlineExceeded),
			want:    KindTimeout,
			backend: BackendMuPDF,
		},
		{
			name:    "anything else is backend internal",
			err:     errors.New("segfault"),
			want:    KindBackendInternal,
			backend: BackendMuPDF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(BackendMuPDF, tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.backend, got.Backend)
		})
	}

	assert.Nil(t, Classify(BackendMuPDF, nil))
}

func TestBackendInternal_HidesCause(t *testing.T) {
	err := Classify(BackendPlumber, errors.New("runtime error: index out of range [3] with length 2"))

	assert.Equal(t, "the backend failed unexpectedly", err.UserMessage())
}

func TestIsErrorType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ValidationError("bad page", nil))
	assert.True(t, IsErrorType(err, ErrorTypeValidation))
	assert.False(t, IsErrorType(err, ErrorTypeIO))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeValidation))
}

func TestClassify_DomainError(t *testing.T) {
	err := Classify(BackendPlumber, ValidationError("page 9 out of range (document has 2 pages)", nil))

	assert.Equal(t, KindBackendInternal, err.Kind)
	assert.Equal(t, "page 9 out of range (document has 2 pages)", err.UserMessage())
	assert.True(t, IsErrorType(err, ErrorTypeValidation))
}
