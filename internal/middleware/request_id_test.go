package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var fromContext string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(fromContext) != 32 {
		t.Fatalf("expected a generated 32-char hex id, got %q", fromContext)
	}
	if got := rec.Header().Get("X-Request-Id"); got != fromContext {
		t.Fatalf("response header %q must match the context id %q", got, fromContext)
	}
}

func TestRequestIDHonorsInbound(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"request id header", "X-Request-Id"},
		{"correlation id header", "X-Correlation-Id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var fromContext string
			handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromContext = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set(tc.header, "upstream-123")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if fromContext != "upstream-123" {
				t.Fatalf("inbound id must be honored, got %q", fromContext)
			}
			if got := rec.Header().Get("X-Request-Id"); got != "upstream-123" {
				t.Fatalf("inbound id must be echoed, got %q", got)
			}
		})
	}
}

func TestGetRequestIDOutsideMiddleware(t *testing.T) {
	if got := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Fatalf("expected empty id outside the middleware, got %q", got)
	}
}
