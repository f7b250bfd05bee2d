package reliability

import "testing"

func TestErrorCodeRateLimited(t *testing.T) {
	if got := ErrorCode(429, ""); got != "rate_limited" {
		t.Fatalf("ErrorCode(429) = %q, want rate_limited", got)
	}
	if got := ErrorCode(400, "RESOURCE_EXHAUSTED: quota exceeded"); got != "rate_limited" {
		t.Fatalf("ErrorCode(quota body) = %q, want rate_limited", got)
	}
}

func TestErrorCodeSchema(t *testing.T) {
	if got := ErrorCode(0, "schema: invalid category"); got != "schema_error" {
		t.Fatalf("ErrorCode(schema) = %q, want schema_error", got)
	}
}

func TestErrorCodeByStatusClass(t *testing.T) {
	if got := ErrorCode(503, "service unavailable"); got != "upstream_error" {
		t.Fatalf("ErrorCode(503) = %q, want upstream_error", got)
	}
	if got := ErrorCode(401, "bad key"); got != "request_rejected" {
		t.Fatalf("ErrorCode(401) = %q, want request_rejected", got)
	}
}
