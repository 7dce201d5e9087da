package util

import "strings"

// SanitizePostgresText strips byte sequences Postgres rejects in text
// columns: invalid UTF-8 and NUL bytes.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// TruncateString shortens s to at most max runes, appending "..." when
// something was cut. Values of max below 4 return s unchanged.
func TruncateString(s string, max int) string {
	if max < 4 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
