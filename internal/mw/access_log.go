package mw

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

func AccessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &httpx.StatusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		d := time.Since(start)

		attrs := []any{
			slog.String("rid", RID(r.Context())),
			slog.String("route", RouteName(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("query", r.URL.RawQuery),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", sw.Status),
			slog.Int("bytes", sw.Bytes),
			slog.Int64("duration_ms", d.Milliseconds()),
		}
		if err := r.Context().Err(); err != nil {
			attrs = append(attrs, slog.String("aborted", err.Error()))
		}
		log.Info("http_request", attrs...)
	})
}
