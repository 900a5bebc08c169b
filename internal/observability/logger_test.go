package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "inspector-test"})

	logger.WithOperation("extract").WithBackend("camelot").Info().
		Str("mode", "lattice").
		Int("pages", 3).
		Err(errors.New("boom")).
		Msg("Extraction failed")

	line := decodeLine(t, &buf)
	assert.Equal(t, "inspector-test", line["service"])
	assert.Equal(t, "extract", line["operation"])
	assert.Equal(t, "camelot", line["backend"])
	assert.Equal(t, "lattice", line["mode"])
	assert.Equal(t, float64(3), line["pages"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "Extraction failed", line["message"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithContext_TraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := ContextWithTraceID(context.Background(), "req-42")
	logger.WithContext(ctx).Info().Msg("traced")

	assert.Equal(t, "req-42", decodeLine(t, &buf)["trace_id"])
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
}

func TestWith_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf}).With().
		Str("run_id", "run-7").
		Str("backend", "ocr-tables").
		Logger()

	logger.Info().Float64("confidence", 87.5).Msg("Recognized page")

	line := decodeLine(t, &buf)
	assert.Equal(t, "run-7", line["run_id"])
	assert.Equal(t, "ocr-tables", line["backend"])
	assert.Equal(t, 87.5, line["confidence"])
}

func TestDefaultLogger(t *testing.T) {
	logger := DefaultLogger()
	assert.Equal(t, zerolog.InfoLevel, logger.zl.GetLevel())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error().Str("k", "v").Msg("discarded")
	})
}
