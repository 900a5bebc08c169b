// Package ui provides terminal output helpers for the pdf-inspector CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	verboseFlag bool

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// InitUI applies the color and verbosity settings.
func InitUI(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

func stdoutDefault() io.Writer { return os.Stdout }
func stderrDefault() io.Writer { return os.Stderr }

// SetOutput redirects both streams; tests use it to capture output.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}
