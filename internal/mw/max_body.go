package mw

import (
	"net/http"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

// MaxBodyBytes bounds the request body that the echo route will read back.
func MaxBodyBytes(limit int64, next http.Handler) http.Handler {
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fast fail when Content-Length is known.
		if r.ContentLength > limit {
			httpx.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error":     "request_too_large",
				"max_bytes": limit,
			})
			return
		}

		// chunked bodies surface *http.MaxBytesError to the handler
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}
