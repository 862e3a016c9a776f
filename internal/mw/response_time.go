package mw

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

const HeaderResponseTime = "X-Response-Time"

// ResponseTime holds the downstream response until it completes, then
// stamps X-Response-Time with the elapsed wall-clock milliseconds and
// sends it. If the client went away meanwhile nothing is sent.
func ResponseTime(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bw := httpx.NewBufferedWriter(w)

		start := time.Now()
		next.ServeHTTP(bw, r)
		elapsed := time.Since(start)

		if r.Context().Err() != nil {
			return
		}

		bw.Header().Set(HeaderResponseTime, strconv.FormatInt(elapsed.Milliseconds(), 10))
		if err := bw.Commit(); err != nil {
			log.Debug("response write failed",
				slog.String("rid", RID(r.Context())),
				slog.String("error", err.Error()),
			)
		}
	})
}
