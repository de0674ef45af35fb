package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIdentifier_UsesFirstForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := ClientIdentifier(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestClientIdentifier_EmptyForwardedForFallsToRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Forwarded-For", " , 5.6.7.8")
	r.Header.Set("X-Real-IP", " 9.9.9.9 ")

	if got := ClientIdentifier(r); got != "9.9.9.9" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestClientIdentifier_FallsBackToLoopback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	// RemoteAddr não entra na identificação
	if got := ClientIdentifier(r); got != LoopbackIdentifier {
		t.Fatalf("expected loopback placeholder, got %q", got)
	}
}
