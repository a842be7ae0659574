package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func corsHandler(policy CORSPolicy) http.Handler {
	return WithCORS(policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	h := corsHandler(CORSPolicy{
		AllowedOrigins: []string{"https://monitor.example.com"},
		AllowedMethods: []string{http.MethodGet},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://monitor.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://monitor.example.com" {
		t.Fatalf("expected allow-origin echo, got %q", got)
	}
}

func TestCORSIgnoresUnlistedOrigin(t *testing.T) {
	h := corsHandler(CORSPolicy{AllowedOrigins: []string{"https://monitor.example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must get no CORS headers, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("request still reaches the handler, got %d", rec.Code)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	h := corsHandler(CORSPolicy{
		AllowedOrigins: []string{"https://monitor.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Business-Id"},
		MaxAge:         10 * time.Minute,
	})
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://monitor.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Fatalf("expected max-age 600, got %q", got)
	}
}

func TestCORSEmptyPolicyIsNoOp(t *testing.T) {
	h := corsHandler(CORSPolicy{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://monitor.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("no-op policy must emit no headers, got %q", got)
	}
}
