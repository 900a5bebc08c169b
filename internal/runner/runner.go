// Package runner executes external engines.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/spherical/pdf-inspector/internal/observability"
)

// DefaultStderrLimit caps how much stderr is written to the log.
const DefaultStderrLimit = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger      *observability.Logger
	stderrLimit int
}

// New creates an ExecRunner. A non-positive stderrLimit uses
// DefaultStderrLimit.
func New(logger *observability.Logger, stderrLimit int) *ExecRunner {
	if logger == nil {
		logger = observability.Nop()
	}
	if stderrLimit <= 0 {
		stderrLimit = DefaultStderrLimit
	}
	return &ExecRunner{logger: logger.WithOperation("exec"), stderrLimit: stderrLimit}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.logger.Error().
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Int64("duration_ms", dur.Milliseconds()).
			Int("exit_code", ExitCode(err)).
			Err(err).
			Str("stderr", Truncate(errb.String(), r.stderrLimit)).
			Msg("exec failed")
	} else {
		r.logger.Debug().
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Int64("duration_ms", dur.Milliseconds()).
			Int("stdout_bytes", out.Len()).
			Int("stderr_bytes", errb.Len()).
			Msg("exec ok")
	}

	return out.Bytes(), errb.Bytes(), err
}

// IsNotFound reports whether err means the executable itself is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// ExitCode returns the process exit status, or -1 when it never ran or
// was killed.
func ExitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	if err == nil {
		return 0
	}
	return -1
}

// Truncate caps s at max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
