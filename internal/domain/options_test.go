package domain

import (
	"testing"

	"github.com/spherical/pdf-inspector/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePages(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{spec: "all", want: nil},
		{spec: "ALL", want: nil},
		{spec: "", want: nil},
		{spec: "1,2,3", want: []int{1, 2, 3}},
		{spec: " 3, 1 ,3 ", want: []int{1, 3}},
		{spec: "1,,2", want: []int{1, 2}},
		{spec: "0", wantErr: true},
		{spec: "1,x", wantErr: true},
		{spec: ",", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePages(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptions_PageSpec(t *testing.T) {
	assert.Equal(t, "all", Options{}.PageSpec())
	assert.Equal(t, "1,4", Options{Pages: []int{1, 4}}.PageSpec())
}

func TestOptions_SelectPages(t *testing.T) {
	pages, err := Options{}.SelectPages(3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pages)

	pages, err = Options{Pages: []int{2}}.SelectPages(3)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, pages)

	_, err = Options{Pages: []int{5}}.SelectPages(3)
	assert.Error(t, err)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(o *Options) {}},
		{name: "line scale low", mutate: func(o *Options) { o.LineScale = 9 }, wantErr: true},
		{name: "line scale high", mutate: func(o *Options) { o.LineScale = 51 }, wantErr: true},
		{name: "scale off step", mutate: func(o *Options) { o.Scale = 1.75 }, wantErr: true},
		{name: "scale on step", mutate: func(o *Options) { o.Scale = 2.5 }},
		{name: "scale too large", mutate: func(o *Options) { o.Scale = 3.5 }, wantErr: true},
		{name: "tolerance zero", mutate: func(o *Options) { o.Tolerance = 0 }, wantErr: true},
		{name: "min chars disabled", mutate: func(o *Options) { o.MinChars = 0 }},
		{name: "unknown engine", mutate: func(o *Options) { o.Engine = "doctr" }, wantErr: true},
		{name: "unknown structured format", mutate: func(o *Options) { o.StructuredFormat = "yaml" }, wantErr: true},
		{name: "page zero", mutate: func(o *Options) { o.Page = 0 }, wantErr: true},
		{name: "empty region", mutate: func(o *Options) { o.Region = &geometry.Rect{X0: 1, Y0: 1, X1: 1, Y1: 5} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{Query: "total"}.WithDefaults()

	assert.Equal(t, DefaultLineScale, o.LineScale)
	assert.Equal(t, DefaultScale, o.Scale)
	assert.Equal(t, DefaultLanguage, o.Language)
	assert.Equal(t, "total", o.Query)
	assert.NoError(t, o.Validate())
}

func TestExtractionResult_IsEmpty(t *testing.T) {
	assert.True(t, NewTextResult(BackendMuPDF, ModeText, []PageText{{Page: 1}}).IsEmpty())
	assert.False(t, NewTextResult(BackendMuPDF, ModeText, []PageText{{Page: 1, Text: "x"}}).IsEmpty())
	assert.True(t, NewTableResult(BackendCamelot, ModeStream, []CanonicalTable{{Header: []string{}}}).IsEmpty())
	assert.False(t, NewTableResult(BackendCamelot, ModeStream, []CanonicalTable{{
		Header: []string{"A"},
		Rows:   [][]string{{"1"}},
	}}).IsEmpty())
}
