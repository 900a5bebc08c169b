package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspector_Inspect(t *testing.T) {
	path := testutil.WritePDF(t, "two.pdf",
		testutil.Letter(testutil.Text{X: 72, Y: 700, S: "first"}),
		testutil.Page{Width: 595, Height: 842},
	)

	doc, err := NewInspector(nil).Inspect(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, 2, doc.TotalPages)
	assert.False(t, doc.Encrypted)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, domain.Page{Index: 0, Width: 612, Height: 792}, doc.Pages[0])
	assert.InDelta(t, 842, doc.Pages[1].Height, 0.01)
	assert.Equal(t, 2, doc.Pages[1].Number())
}

func TestInspector_Malformed(t *testing.T) {
	path := testutil.WriteFile(t, "broken.pdf", []byte("%PDF-1.4\nthis is not a pdf body"))

	_, err := NewInspector(nil).Inspect(context.Background(), path, "")
	assert.True(t, domain.IsKind(err, domain.KindMalformedDocument))
}

func TestInspector_Cancelled(t *testing.T) {
	path := testutil.WritePDF(t, "one.pdf", testutil.Letter())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInspector(nil).Inspect(ctx, path, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		msg  string
		want domain.ErrorKind
	}{
		{"pdfcpu: please provide the correct password", domain.KindPasswordProtected},
		{"this file is encrypted", domain.KindPasswordProtected},
		{"pdfcpu: corrupt xref", domain.KindMalformedDocument},
	}
	for _, tt := range tests {
		err := ClassifyReadError(domain.BackendMuPDF, errors.New(tt.msg))
		assert.Equal(t, tt.want, err.Kind, tt.msg)
		assert.Equal(t, domain.BackendMuPDF, err.Backend)
	}
}
