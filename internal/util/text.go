package util

import "strings"

// SanitizePostgresText strips invalid UTF-8 and NUL bytes before a value is
// written to Postgres.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}
	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
