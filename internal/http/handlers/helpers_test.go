package handlers

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		realIP    string
		remote    string
		expected  string
	}{
		{name: "forwarded chain", forwarded: "203.0.113.7, 10.0.0.1", remote: "10.0.0.2:4444", expected: "203.0.113.7"},
		{name: "real ip fallback", realIP: "203.0.113.9", remote: "10.0.0.2:4444", expected: "203.0.113.9"},
		{name: "remote addr", remote: "192.0.2.5:51234", expected: "192.0.2.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				r.Header.Set("x-forwarded-for", tc.forwarded)
			}
			if tc.realIP != "" {
				r.Header.Set("x-real-ip", tc.realIP)
			}
			if got := clientIP(r); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("cafe-aroma/A1 "); got != "cafe-aroma_A1" {
		t.Fatalf("unexpected filename %q", got)
	}
}
