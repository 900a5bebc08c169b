package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spherical/pdf-inspector/internal/export"
	"github.com/spherical/pdf-inspector/internal/geometry"
)

// parseRegion reads "x0,y0,x1,y1" in PDF points. Empty means no region.
func parseRegion(s string) (*geometry.Rect, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("region must be x0,y0,x1,y1, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid region coordinate %q", p)
		}
		v[i] = f
	}
	if v[2] <= v[0] || v[3] <= v[1] {
		return nil, fmt.Errorf("region %q has no area", s)
	}
	return &geometry.Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}, nil
}

// parseFormats validates export format names, dropping duplicates.
func parseFormats(names []string) ([]export.Format, error) {
	seen := make(map[export.Format]bool)
	var out []export.Format
	for _, n := range names {
		f, err := export.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}
