package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name         string
		protectReads bool
		method       string
		path         string
		header       map[string]string
		want         int
	}{
		{name: "health open", method: "GET", path: "/health", want: http.StatusOK},
		{name: "metrics open", protectReads: true, method: "GET", path: "/metrics", want: http.StatusOK},
		{name: "config view open", method: "GET", path: "/api/v1/config", want: http.StatusOK},
		{name: "event stream open", method: "GET", path: "/api/v1/events/stream", want: http.StatusOK},
		{name: "reload without key", method: "POST", path: "/api/v1/config/reload", want: http.StatusUnauthorized},
		{name: "rollback without key", method: "POST", path: "/api/v1/config/rollback", want: http.StatusUnauthorized},
		{
			name: "reload with bearer", method: "POST", path: "/api/v1/config/reload",
			header: map[string]string{"Authorization": "Bearer tok-abc-123"},
			want:   http.StatusOK,
		},
		{
			name: "rollback with X-API-Key", method: "POST", path: "/api/v1/config/rollback",
			header: map[string]string{"X-API-Key": "tok-def-456"},
			want:   http.StatusOK,
		},
		{
			name: "reload with bad bearer", method: "POST", path: "/api/v1/config/reload",
			header: map[string]string{"Authorization": "Bearer bad-token"},
			want:   http.StatusUnauthorized,
		},
		{
			name: "reload with bad X-API-Key", method: "POST", path: "/api/v1/config/reload",
			header: map[string]string{"X-API-Key": "bad-key"},
			want:   http.StatusUnauthorized,
		},
		{
			name: "basic credentials are not keys", method: "POST", path: "/api/v1/config/reload",
			header: map[string]string{"Authorization": "Basic dG9rLWFiYy0xMjM6"},
			want:   http.StatusUnauthorized,
		},
		{
			name: "empty bearer", method: "POST", path: "/api/v1/config/reload",
			header: map[string]string{"Authorization": "Bearer "},
			want:   http.StatusUnauthorized,
		},
		{name: "protected view without key", protectReads: true, method: "GET", path: "/api/v1/config/daemons", want: http.StatusUnauthorized},
		{
			name: "protected view with key", protectReads: true, method: "GET", path: "/api/v1/config/daemons",
			header: map[string]string{"X-API-Key": "tok-abc-123"},
			want:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AuthConfig{APIKeys: []string{"tok-abc-123", "tok-def-456"}, ProtectReads: tt.protectReads}
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			authMiddleware(cfg, ok).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("got status %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if wa := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(wa, "Bearer ") {
					t.Errorf("WWW-Authenticate = %q, want a Bearer challenge", wa)
				}
				if !strings.Contains(w.Body.String(), tt.path) {
					t.Errorf("401 body does not name %s: %s", tt.path, w.Body.String())
				}
			}
		})
	}
}

func TestAuthNoKeysRejectsWrites(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest("POST", "/api/v1/config/reload", nil)
	req.Header.Set("X-API-Key", "")
	w := httptest.NewRecorder()
	authMiddleware(AuthConfig{}, ok).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", w.Code)
	}
}
