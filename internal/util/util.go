package util

import "unicode/utf8"

const ellipsis = "..."

// Truncate shortens s to at most n runes, replacing the tail with "..." when it doesn't fit.
// Strings of n runes or fewer are returned unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	keep := n - len(ellipsis)
	if keep <= 0 {
		return string([]rune(s)[:n])
	}

	return string([]rune(s)[:keep]) + ellipsis
}

func AsInt32(i int) int32 {
	if i > 2147483647 {
		return 2147483647
	}
	if i < -2147483648 {
		return -2147483648
	}
	// #nosec G115 - bounded by explicit check
	return int32(i)
}
