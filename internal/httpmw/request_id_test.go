package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	RequestID("")(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if seen == "" {
		t.Fatal("no request id in context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("response header %q != context id %q", got, seen)
	}
	if len(seen) != 32 {
		t.Errorf("generated id should be 16 random bytes hex-encoded, got %q", seen)
	}
}

func TestRequestID_PropagatesExisting(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "upstream-id-123")

	rec := httptest.NewRecorder()
	RequestID("X-Request-Id")(inner).ServeHTTP(rec, req)

	if seen != "upstream-id-123" {
		t.Errorf("context id = %q, want upstream-id-123", seen)
	}
}
