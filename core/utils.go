package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanUSN normalizes a student enrollment code: trimmed and upper-cased.
func CleanUSN(usn string) string {
	return strings.ToUpper(strings.TrimSpace(usn))
}
