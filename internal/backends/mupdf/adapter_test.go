package mupdf

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoicePDF(t *testing.T) string {
	return testutil.WritePDF(t, "invoice.pdf",
		testutil.Letter(
			testutil.Text{X: 72, Y: 700, S: "Item"},
			testutil.Text{X: 300, Y: 700, S: "Price"},
			testutil.Text{X: 72, Y: 670, S: "Widget"},
			testutil.Text{X: 300, Y: 670, S: "9.99"},
		),
		testutil.Letter(testutil.Text{X: 72, Y: 700, S: "Terms and conditions"}),
	)
}

func extract(t *testing.T, mode domain.Mode, mutate func(*domain.Options)) (*domain.ExtractionResult, error) {
	t.Helper()
	opts := domain.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return New(nil).Extract(context.Background(), invoicePDF(t), mode, opts)
}

func TestExtract_AllText(t *testing.T) {
	var progress []int
	res, err := extract(t, domain.ModeText, func(o *domain.Options) {
		o.OnPage = func(page, total int) { progress = append(progress, page) }
	})
	require.NoError(t, err)

	require.Len(t, res.Text, 2)
	assert.Contains(t, res.Text[0].Text, "Widget")
	assert.Contains(t, res.Text[1].Text, "Terms")
	assert.Equal(t, []int{1, 2}, progress)
	assert.False(t, res.IsEmpty())
}

func TestExtract_Page(t *testing.T) {
	res, err := extract(t, domain.ModePage, func(o *domain.Options) { o.Page = 2 })
	require.NoError(t, err)
	require.Len(t, res.Text, 1)
	assert.Equal(t, 2, res.Text[0].Page)
	assert.Contains(t, res.Text[0].Text, "conditions")

	_, err = extract(t, domain.ModePage, func(o *domain.Options) { o.Page = 9 })
	assert.ErrorContains(t, err, "out of range")
}

func TestExtract_StructuredMarkdown(t *testing.T) {
	res, err := extract(t, domain.ModeStructured, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StructuredMarkdown, res.StructuredFormat)
	assert.True(t, strings.HasPrefix(res.Structured, "## Page 1\n"))
	assert.Contains(t, res.Structured, "## Page 2")
}

func TestExtract_StructuredJSON(t *testing.T) {
	res, err := extract(t, domain.ModeStructured, func(o *domain.Options) { o.StructuredFormat = domain.StructuredJSON })
	require.NoError(t, err)

	var pages []structuredPage
	require.NoError(t, json.Unmarshal([]byte(res.Structured), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, 612.0, pages[0].Width)
	require.NotEmpty(t, pages[1].Lines)
	// PDF space: text drawn at y=700 sits in the upper part of the page
	assert.Greater(t, pages[1].Lines[0].BBox.Y0, 600.0)
}

func TestExtract_Search(t *testing.T) {
	res, err := extract(t, domain.ModeSearch, func(o *domain.Options) { o.Query = "WIDGET" })
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Matches[0].Page)
	assert.Contains(t, res.Matches[0].Text, "Widget")
	assert.InDelta(t, 670, res.Matches[0].Rect.Y0, 15)

	res, err = extract(t, domain.ModeSearch, func(o *domain.Options) { o.Query = "absent" })
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())

	_, err = extract(t, domain.ModeSearch, nil)
	assert.ErrorContains(t, err, "query")
}

func TestExtract_Tables(t *testing.T) {
	res, err := extract(t, domain.ModeTables, func(o *domain.Options) { o.Pages = []int{1} })
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)

	tbl := res.Tables[0]
	assert.Equal(t, 1, tbl.Page)
	require.Len(t, tbl.Rows, 2)
	assert.Contains(t, strings.Join(tbl.Rows[0], " "), "Item")
	assert.Contains(t, strings.Join(tbl.Rows[1], " "), "Widget")
	require.NotNil(t, tbl.Metrics)
	assert.Nil(t, tbl.Metrics.Accuracy)
}

func TestExtract_ImagesNone(t *testing.T) {
	res, err := extract(t, domain.ModeImages, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Images)
	assert.True(t, res.IsEmpty())
}

func TestExtract_Errors(t *testing.T) {
	_, err := extract(t, domain.ModeLattice, nil)
	assert.ErrorContains(t, err, "does not support")

	junk := testutil.WriteFile(t, "junk.pdf", []byte("garbage"))
	_, err = New(nil).Extract(context.Background(), junk, domain.ModeText, domain.DefaultOptions())
	assert.True(t, domain.IsKind(err, domain.KindMalformedDocument))
}
