package backends

import (
	"context"
	"testing"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stub struct {
	name  domain.Backend
	modes []domain.Mode
}

func (s stub) Name() domain.Backend                          { return s.name }
func (s stub) Family() domain.Family                         { return domain.FamilyDirectText }
func (s stub) Modes() []domain.Mode                          { return s.modes }
func (s stub) Requirements(domain.Mode) []domain.Requirement { return nil }
func (s stub) Extract(context.Context, string, domain.Mode, domain.Options) (*domain.ExtractionResult, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		stub{name: domain.BackendTabula},
		stub{name: domain.BackendMuPDF, modes: []domain.Mode{domain.ModeText}},
		stub{name: domain.BackendCamelot},
	)

	var names []domain.Backend
	for _, a := range r.List() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []domain.Backend{domain.BackendMuPDF, domain.BackendCamelot, domain.BackendTabula}, names)

	a, err := r.Get(domain.BackendMuPDF)
	require.NoError(t, err)
	assert.NoError(t, CheckMode(a, domain.ModeText))
	assert.ErrorContains(t, CheckMode(a, domain.ModeLattice), "does not support")

	_, err = r.Get("pdfminer")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestJoinPages(t *testing.T) {
	got := JoinPages([]domain.PageText{{Page: 1, Text: "alpha\n"}, {Page: 3, Text: "gamma"}})
	assert.Equal(t, "--- Page 1 ---\nalpha\n\n--- Page 3 ---\ngamma", got)
	assert.Equal(t, "", JoinPages(nil))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitLines("  a \n\n b c\n"))
}

func TestSinglePage(t *testing.T) {
	assert.NoError(t, SinglePage(2, 2))
	assert.Error(t, SinglePage(3, 2))
	assert.Error(t, SinglePage(0, 2))
}

func TestJoinPages_WholeDocument(t *testing.T) {
	assert.Equal(t, "all text", JoinPages([]domain.PageText{{Page: 0, Text: "all text\n"}}))
}
