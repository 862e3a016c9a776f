package echo

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

const (
	HeaderClientIP        = "X-Client-iP"
	HeaderClientUserAgent = "X-Client-User-Agent"

	defaultContentType = "text/plain"
)

// ClientIPResolver picks the address reported back in X-Client-iP.
type ClientIPResolver interface {
	ClientIP(r *http.Request) string
}

// Handler answers GET, POST and PUT on the echo route.
type Handler struct {
	IPs ClientIPResolver
	Log *slog.Logger
}

func NewHandler(ips ClientIPResolver, log *slog.Logger) *Handler {
	return &Handler{IPs: ips, Log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "bad_query",
			"message": err.Error(),
		})
		return
	}
	res := Resolve(q)

	write := isWriteMethod(r.Method)
	var body []byte
	if write {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				httpx.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
					"error":     "request_too_large",
					"max_bytes": mbe.Limit,
				})
				return
			}
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_body"})
			return
		}
	}

	if err := Sleep(r.Context(), res.Delay()); err != nil {
		h.Log.Debug("echo abandoned",
			slog.String("path", r.URL.Path),
			slog.Uint64("delay_ms", res.DelayMillis),
			slog.String("error", err.Error()),
		)
		return
	}

	hdr, err := h.clientHeaders(r, write)
	if err != nil {
		h.Log.Warn("rejecting request with unrepresentable header", slog.String("error", err.Error()))
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "invalid_header",
			"message": err.Error(),
		})
		return
	}
	for k, v := range hdr {
		w.Header()[k] = v
	}

	w.WriteHeader(EffectiveStatus(res.Status))
	if write && len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// clientHeaders builds the per-request client context headers. Nothing is
// applied to the response unless every value is valid.
func (h *Handler) clientHeaders(r *http.Request, write bool) (http.Header, error) {
	out := make(http.Header, 3)

	ip := r.RemoteAddr
	if h.IPs != nil {
		ip = h.IPs.ClientIP(r)
	}
	if err := httpx.SetHeader(out, HeaderClientIP, ip); err != nil {
		return nil, err
	}
	if err := httpx.SetHeader(out, HeaderClientUserAgent, r.Header.Get("User-Agent")); err != nil {
		return nil, err
	}
	if write {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = defaultContentType
		}
		if err := httpx.SetHeader(out, "Content-Type", ct); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isWriteMethod(m string) bool {
	return m == http.MethodPost || m == http.MethodPut
}
