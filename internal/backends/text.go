package backends

import (
	"fmt"
	"strings"

	"github.com/spherical/pdf-inspector/internal/domain"
)

// PageSeparator is the header written before each page of joined text.
func PageSeparator(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

// JoinPages concatenates page texts with page separators. Page 0 marks
// whole-document text and gets no separator.
func JoinPages(pages []domain.PageText) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if p.Page > 0 {
			b.WriteString(PageSeparator(p.Page))
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimRight(p.Text, "\n"))
	}
	return b.String()
}

// SplitLines returns the non-blank lines of s, trimmed.
func SplitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SinglePage validates a one-based page against total.
func SinglePage(page, total int) error {
	if page < 1 || page > total {
		return domain.ValidationError(fmt.Sprintf("page %d out of range (document has %d pages)", page, total), nil)
	}
	return nil
}
