package domain

import "context"

// Requirement is an external executable a backend needs for some mode.
// Any one of Executables resolving on the search path satisfies it.
type Requirement struct {
	Name        string
	Executables []string
}

// Adapter wraps one extraction backend behind a uniform contract
type Adapter interface {
	// Name identifies the backend
	Name() Backend

	// Family groups the backend for fallback and presentation
	Family() Family

	// Modes lists the supported modes in presentation order
	Modes() []Mode

	// Requirements lists the executables needed for a mode
	Requirements(mode Mode) []Requirement

	// Extract runs the backend against the document at path
	Extract(ctx context.Context, path string, mode Mode, opts Options) (*ExtractionResult, error)
}

// Prober answers whether any of the named executables is installed
type Prober interface {
	Available(names ...string) bool
}

// Inspector opens a document just long enough to read its structure
type Inspector interface {
	Inspect(ctx context.Context, path, password string) (*Document, error)
}
