package tables

import (
	"github.com/spherical/pdf-inspector/internal/domain"
)

// Whitespace is the percentage of empty cells in the table body.
func Whitespace(t domain.CanonicalTable) float64 {
	total, empty := 0, 0
	for _, row := range t.Rows {
		for _, cell := range row {
			total++
			if cell == "" {
				empty++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return round2(100 * float64(empty) / float64(total))
}

// WithReport attaches a parsing report. order is the one-based position of
// the table on its page; accuracy may be nil when the engine has none.
func WithReport(t domain.CanonicalTable, order int, accuracy *float64) domain.CanonicalTable {
	t.Metrics = &domain.TableMetrics{
		Accuracy:   accuracy,
		Whitespace: Whitespace(t),
		Order:      order,
	}
	return t
}

// Accuracy returns a pointer to a rounded percentage.
func Accuracy(pct float64) *float64 {
	v := Percent(pct)
	return &v
}

// Percent rounds a percentage to two decimals.
func Percent(pct float64) float64 {
	return round2(pct)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
