package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := TokenAuth("s3cret")(ok)

	tests := []struct {
		name   string
		path   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", "/api/status", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong bearer", "/api/status", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer", "/api/status", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, http.StatusTeapot},
		{"query", "/api/events?token=s3cret", func(r *http.Request) {}, http.StatusTeapot},
		{"cookie", "/api/clips", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "s3cret"}) }, http.StatusTeapot},
		{"healthz open", "/healthz", func(r *http.Request) {}, http.StatusTeapot},
		{"metrics open", "/metrics", func(r *http.Request) {}, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestTokenAuth_Disabled(t *testing.T) {
	h := TokenAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
