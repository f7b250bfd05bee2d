// Package reliability classifies upstream failures so that metrics and
// logs distinguish quota exhaustion from genuine outages. The gateway's
// resilience strategy is ordered fallback either way; the code here only
// names what happened.
package reliability

import "strings"

// IsRateLimitStatus reports whether an HTTP status signals quota or rate
// exhaustion.
func IsRateLimitStatus(code int) bool {
	return code == 429
}

// IsRateLimitMessage sniffs provider error bodies whose status alone is
// ambiguous (some backends wrap 429s in 400/500 responses).
func IsRateLimitMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, keyword := range []string{
		"quota", "rate_limit", "rate limit", "resource_exhausted",
		"too many requests", "limit exceeded",
	} {
		if strings.Contains(m, keyword) {
			return true
		}
	}
	return false
}

// ErrorCode maps a provider failure to a stable metric label.
func ErrorCode(status int, msg string) string {
	switch {
	case IsRateLimitStatus(status) || IsRateLimitMessage(msg):
		return "rate_limited"
	case strings.HasPrefix(msg, "schema:"):
		return "schema_error"
	case status >= 500:
		return "upstream_error"
	case status >= 400:
		return "request_rejected"
	default:
		return "upstream_error"
	}
}
