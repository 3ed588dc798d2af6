package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string

	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("Expected a generated request ID")
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Error("Response header should echo the request ID")
	}
}

func TestRequestIDTrusted(t *testing.T) {
	var seen string

	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "abc-123" {
		t.Errorf("Expected incoming ID to be trusted, got %q", seen)
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := GetRequestID(req); id != "" {
		t.Errorf("Expected empty ID, got %q", id)
	}
}
