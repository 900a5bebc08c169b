package tables

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s(v string) *string { return &v }

func TestNormalize_Header(t *testing.T) {
	tests := []struct {
		name   string
		raw    [][]*string
		header []string
		rows   [][]string
	}{
		{
			name:   "duplicate and blank names",
			raw:    [][]*string{{s("Name"), s("Name"), s("")}, {s("a"), s("b"), s("c")}},
			header: []string{"Name", "Name_1", "Column_3"},
			rows:   [][]string{{"a", "b", "c"}},
		},
		{
			name:   "nil and whitespace header cells",
			raw:    [][]*string{{nil, s("  "), s("Qty")}},
			header: []string{"Column_1", "Column_2", "Qty"},
			rows:   [][]string{},
		},
		{
			name:   "suffix collides with a real name",
			raw:    [][]*string{{s("A"), s("A_1"), s("A"), s("A")}},
			header: []string{"A", "A_1", "A_2", "A_3"},
			rows:   [][]string{},
		},
		{
			name:   "synthesized name collides with a real name",
			raw:    [][]*string{{s("Column_2"), nil}},
			header: []string{"Column_2", "Column_2_1"},
			rows:   [][]string{},
		},
		{
			name:   "headerless uses width of second row",
			raw:    [][]*string{{}, {s("1"), s("2")}, {s("3")}},
			header: []string{"Column_1", "Column_2"},
			rows:   [][]string{{"1", "2"}, {"3", ""}},
		},
		{
			name:   "headerless single row",
			raw:    [][]*string{{}},
			header: []string{},
			rows:   [][]string{},
		},
		{
			name:   "short rows padded",
			raw:    [][]*string{{s("x"), s("y"), s("z")}, {s("a"), s("b")}},
			header: []string{"x", "y", "z"},
			rows:   [][]string{{"a", "b", ""}},
		},
		{
			name:   "wide rows extend the header",
			raw:    [][]*string{{s("x")}, {s("a"), nil, s("c")}},
			header: []string{"x", "Column_2", "Column_3"},
			rows:   [][]string{{"a", "", "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Equal(t, tt.header, got.Header)
			assert.Equal(t, tt.rows, got.Rows)
		})
	}
}

func TestNormalize_Empty(t *testing.T) {
	got := Normalize(nil)
	assert.Equal(t, []string{}, got.Header)
	assert.Empty(t, got.Rows)
	assert.True(t, got.Empty())
}

func TestNormalize_Invariants(t *testing.T) {
	inputs := [][][]string{
		{{"a", "a", "a"}, {"1"}, {"1", "2", "3", "4"}},
		{{"", "", ""}, {"x", "y"}},
		{{"k", "k_1", "k"}, {}, {"1", "2", "3"}},
	}

	for _, raw := range inputs {
		got := NormalizeStrings(raw)

		seen := map[string]bool{}
		for _, name := range got.Header {
			assert.NotEmpty(t, name)
			assert.False(t, seen[name], "duplicate column %q in %v", name, got.Header)
			seen[name] = true
		}
		for _, row := range got.Rows {
			assert.Len(t, row, len(got.Header))
		}
	}
}

func TestNormalize_CSVRoundTrip(t *testing.T) {
	tbl := NormalizeStrings([][]string{
		{"Item", "Price", "Item"},
		{"Widget, large", "9.99", "\"quoted\""},
		{"Gadget"},
	})

	var b strings.Builder
	w := csv.NewWriter(&b)
	require.NoError(t, w.Write(tbl.Header))
	require.NoError(t, w.WriteAll(tbl.Rows))

	records, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, tbl.Header, records[0])
	assert.Equal(t, tbl.Rows, records[1:])
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "a_1", "b_1", "a_2"}, Dedupe([]string{"a", "b", "a", "b", "a"}))
	assert.Empty(t, Dedupe(nil))
}

func TestWithReport(t *testing.T) {
	tbl := WithReport(NormalizeStrings([][]string{{"a", "b"}, {"1", ""}, {"", ""}}), 2, Accuracy(97.456))

	require.NotNil(t, tbl.Metrics)
	assert.Equal(t, 75.0, tbl.Metrics.Whitespace)
	assert.Equal(t, 2, tbl.Metrics.Order)
	require.NotNil(t, tbl.Metrics.Accuracy)
	assert.InDelta(t, 97.46, *tbl.Metrics.Accuracy, 1e-9)

	assert.Zero(t, Whitespace(NormalizeStrings(nil)))
}
