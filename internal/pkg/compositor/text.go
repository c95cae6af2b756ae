package compositor

import (
	"strings"
	"unicode"
)

const Ellipsis = "…"

// Truncate trims s and, when it has more than max runes, cuts it to max-1 runes plus an ellipsis.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimRightFunc(string(r[:max-1]), unicode.IsSpace) + Ellipsis
}
