package mw

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/3xpluto/go-echo-server/internal/httpx"
	"github.com/3xpluto/go-echo-server/internal/ratelimit"
)

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   float64
}

// RateLimit applies a per-client token bucket keyed by IPResolver.RateKey.
func RateLimit(limiter ratelimit.Limiter, ipr IPResolver, cfg RateLimitConfig, log *slog.Logger, next http.Handler) http.Handler {
	if !cfg.Enabled || limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "echo:rl:" + RouteName(r.Context()) + ":ip:" + ipr.RateKey(r)

		dec, err := limiter.Allow(r.Context(), key, cfg.RPS, cfg.Burst, 1)
		if err != nil {
			// fail open: a broken limiter backend must not take the echo target down
			log.Warn("rate limiter unavailable", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit-RPS", trimFloat(cfg.RPS))
		w.Header().Set("X-RateLimit-Burst", trimFloat(cfg.Burst))
		if dec.Remaining > 0 {
			w.Header().Set("X-RateLimit-Remaining", trimFloat(dec.Remaining))
		}

		if !dec.Allowed {
			retry := dec.RetryAfterSeconds
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retry)*time.Second).Unix(), 10))
			httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":               "rate_limited",
				"retry_after_seconds": retry,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" {
		s = "0"
	}
	return s
}
