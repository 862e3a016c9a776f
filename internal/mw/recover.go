package mw

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

// Recover turns a handler panic into a 500 for that request only.
func Recover(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error("panic recovered",
				slog.String("rid", RID(r.Context())),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			httpx.WriteJSON(w, http.StatusInternalServerError, map[string]any{
				"error": "internal_error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}
