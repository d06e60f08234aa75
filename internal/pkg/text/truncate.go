package text

import "unicode/utf8"

// Truncate shortens s to at most max bytes plus an ellipsis, cutting on a
// rune boundary so log excerpts stay valid UTF-8.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
