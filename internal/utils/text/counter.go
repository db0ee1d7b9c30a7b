// Package text provides rune-aware helpers for article text.
package text

import "strings"

// CountRunes counts Unicode characters rather than bytes.
func CountRunes(text string) int {
	return len([]rune(text))
}

// Truncate shortens text to at most limit runes, cutting at the last space
// when one falls in the final fifth and appending an ellipsis. A limit of
// zero or less returns text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 && CountRunes(cut[:i]) >= limit*4/5 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// NormalizeSpace collapses runs of whitespace into single spaces.
func NormalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
