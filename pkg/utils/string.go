package utils

// Truncate cuts s to at most maxLen runes, marking the cut with "...".
// Ideas and rationales are often non-ASCII, so the cut never splits a rune.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
