package observability

import "strings"

// Log field limits. Routes are chi patterns, actors are wallet user ids, and
// both can be attacker-influenced, so every field is scrubbed before it
// reaches zap.
const (
	maxRouteLen  = 180
	maxActorLen  = 64
	maxMethodLen = 10
)

// scrub drops control characters and clamps the value to limit bytes so a
// hostile header or identifier cannot inject log lines.
func scrub(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}

// SanitizeRoute scrubs a matched route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, maxRouteLen)
}

// SanitizeMethod scrubs an HTTP method for logging.
func SanitizeMethod(method string) string {
	return scrub(method, maxMethodLen)
}

// SanitizeUserID scrubs a caller identity for logging.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return scrub(uid, maxActorLen)
}
