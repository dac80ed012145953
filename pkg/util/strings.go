package util

// Abbrev shortens s to at most n bytes for log fields, marking the cut with "...".
// data: URIs routinely run to megabytes.
func Abbrev(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
