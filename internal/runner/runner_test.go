package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/spherical/pdf-inspector/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...(truncated)", Truncate("abcdef", 2))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(errors.New("boom")))
}

func TestIsNotFound(t *testing.T) {
	_, _, err := New(nil, 0).Run(context.Background(), "pdfi-definitely-not-installed")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(fmt.Errorf("wrapped: %w", errors.New("other"))))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", exec.ErrNotFound)))
}

func TestExecRunner_LogsTruncatedStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "json", Output: &buf})
	r := New(logger, 4)

	stdout, stderr, err := r.Run(context.Background(), "sh", "-c", "echo out; echo failure-detail >&2; exit 3")

	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "failure-detail\n", string(stderr))
	assert.Contains(t, buf.String(), `"stderr":"fail...(truncated)"`)
	assert.True(t, strings.Contains(buf.String(), `"exit_code":3`))
}
