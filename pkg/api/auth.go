package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// AuthConfig holds the API keys accepted by the server. A key is sent as
// "Authorization: Bearer KEY" or "X-API-Key: KEY".
type AuthConfig struct {
	APIKeys []string
	// ProtectReads also requires a key for the configuration views and the
	// event stream. Reload and rollback always require one.
	ProtectReads bool
}

// requiresKey reports whether r changes store state or reads a guarded view.
// /health and /metrics are always open.
func (c AuthConfig) requiresKey(r *http.Request) bool {
	if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	return c.ProtectReads
}

func (c AuthConfig) validKey(key string) bool {
	if key == "" {
		return false
	}
	ok := false
	for _, k := range c.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			ok = true
		}
	}
	return ok
}

// requestKey returns the key presented by r, preferring the Authorization
// header.
func requestKey(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.Header.Get("X-API-Key")
}

// authMiddleware rejects requests that need a key and do not carry a valid
// one.
func authMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.requiresKey(r) || cfg.validKey(requestKey(r)) {
			next.ServeHTTP(w, r)
			return
		}
		slog.Warn("api request rejected", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		w.Header().Set("WWW-Authenticate", `Bearer realm="metconf API"`)
		writeJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   fmt.Sprintf("api key required for %s %s", r.Method, r.URL.Path),
		})
	})
}
