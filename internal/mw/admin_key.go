package mw

import (
	"crypto/subtle"
	"net/http"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey hides next behind a shared key. With no key configured
// the admin endpoints do not exist.
func RequireAdminKey(adminKey string, next http.Handler) http.Handler {
	if adminKey == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}

	want := []byte(adminKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(AdminKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
