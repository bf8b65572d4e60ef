package observability

import (
	"strings"
	"unicode"
)

// Rune caps for request supplied values written to logs and span attributes.
const (
	maxRouteLen   = 180
	maxMethodLen  = 10
	maxIDLen      = 64
	maxLocaleLen  = 35
	maxDefaultLen = 256
)

// clip drops control runes so request values cannot forge log lines, then caps the length.
func clip(value string, limit int) string {
	if limit <= 0 {
		limit = maxDefaultLen
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern or path for logging. Empty input becomes "/".
func SanitizeRoute(route string) string {
	if route = clip(route, maxRouteLen); route == "" {
		return "/"
	}
	return route
}
