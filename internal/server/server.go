// Package server wires the echo routes, the middleware pipeline and the
// operational endpoints into one http.Handler.
package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3xpluto/go-echo-server/internal/apidoc"
	"github.com/3xpluto/go-echo-server/internal/config"
	"github.com/3xpluto/go-echo-server/internal/echo"
	"github.com/3xpluto/go-echo-server/internal/httpx"
	"github.com/3xpluto/go-echo-server/internal/mw"
	"github.com/3xpluto/go-echo-server/internal/netx"
	"github.com/3xpluto/go-echo-server/internal/ratelimit"
)

type Options struct {
	Config   *config.Config
	Log      *slog.Logger
	Limiter  ratelimit.Limiter // nil disables rate limiting
	AdminKey string
	Version  string
	Registry *prometheus.Registry // nil creates a fresh one
}

// Server is the assembled echo service.
type Server struct {
	handler   http.Handler
	admission *mw.Admission
	registry  *prometheus.Registry
	startedAt time.Time
}

func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	trusted, err := netx.ParseCIDRSet(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	ipr := mw.IPResolver{Trusted: trusted}

	s := &Server{
		admission: mw.NewAdmission(cfg.Admission.MaxInFlight, cfg.Admission.Pending()),
		registry:  reg,
		startedAt: time.Now(),
	}
	metrics := mw.NewMetrics(reg)
	mw.RegisterAdmission(reg, s.admission)

	rl := mw.RateLimitConfig{
		Enabled: cfg.RateLimit.Enabled,
		RPS:     cfg.RateLimit.RPS,
		Burst:   cfg.RateLimit.Burst,
	}

	// Outermost first. Response timing wraps only the route itself so that
	// the reported time is the work done for the request.
	pipeline := func(route string, h http.Handler) http.Handler {
		return mw.Chain(h,
			func(next http.Handler) http.Handler { return mw.Recover(log, next) },
			mw.RequestID,
			func(next http.Handler) http.Handler { return mw.WithRoute(next, route) },
			func(next http.Handler) http.Handler { return mw.AccessLog(log, next) },
			func(next http.Handler) http.Handler { return mw.Instrument(metrics, next) },
			func(next http.Handler) http.Handler { return mw.Admit(s.admission, next) },
			func(next http.Handler) http.Handler { return mw.RateLimit(opts.Limiter, ipr, rl, log, next) },
			func(next http.Handler) http.Handler { return mw.MaxBodyBytes(cfg.Server.MaxBodyBytes, next) },
			func(next http.Handler) http.Handler { return mw.ResponseTime(log, next) },
		)
	}

	wrapAdmin := func(route string, h http.Handler) http.Handler {
		return mw.Chain(h,
			mw.RequestID,
			func(next http.Handler) http.Handler { return mw.WithRoute(next, route) },
			func(next http.Handler) http.Handler { return mw.AccessLog(log, next) },
			func(next http.Handler) http.Handler { return mw.RequireAdminKey(opts.AdminKey, next) },
		)
	}

	echoHandler := pipeline("echo", echo.NewHandler(ipr, log))

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", echoHandler)
	mux.Handle("POST /{$}", echoHandler)
	mux.Handle("PUT /{$}", echoHandler)
	mux.Handle("GET /help", pipeline("help", http.HandlerFunc(echo.Help)))
	mux.Handle("GET /openapi.json", pipeline("openapi", apidoc.Handler(apidoc.Document(version))))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.Handle("GET /-/status", wrapAdmin("admin_status", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		goVer := ""
		if info, ok := debug.ReadBuildInfo(); ok {
			goVer = info.GoVersion
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"time_utc":       time.Now().UTC().Format(time.RFC3339),
			"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
			"listen_addr":    cfg.Server.Addr,
			"go_version":     goVer,
			"version":        version,
			"rate_limit":     cfg.RateLimit.Enabled,
			"rate_backend":   cfg.RateLimit.Backend,
		})
	})))
	mux.Handle("GET /-/limits", wrapAdmin("admin_limits", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"admission":      s.admission.Stats(),
			"max_delay_ms":   echo.MaxDelayMillis,
			"max_body_bytes": cfg.Server.MaxBodyBytes,
		})
	})))

	// unknown routes and methods: bare 404
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	s.handler = mux
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Admission() *mw.Admission { return s.admission }

// HTTPServer returns an http.Server for cfg with timeouts sized for the
// longest echo delay.
func (s *Server) HTTPServer(cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}
}
