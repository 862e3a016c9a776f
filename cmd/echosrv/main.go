package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/3xpluto/go-echo-server/internal/config"
	"github.com/3xpluto/go-echo-server/internal/logging"
	"github.com/3xpluto/go-echo-server/internal/ratelimit"
	"github.com/3xpluto/go-echo-server/internal/server"
)

var version = "dev"

func main() {
	var configPath string
	var validateOnly bool
	flag.StringVar(&configPath, "config", "", "path to yaml config (defaults when empty)")
	flag.BoolVar(&validateOnly, "validate-config", false, "validate config and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.New(logging.Options{}).Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(log)

	if validateOnly {
		log.Info("config ok")
		return
	}

	limiter := newLimiter(cfg, log)
	if limiter != nil {
		defer limiter.Close()
	}

	s, err := server.New(server.Options{
		Config:   cfg,
		Log:      log,
		Limiter:  limiter,
		AdminKey: os.Getenv("ECHO_ADMIN_KEY"),
		Version:  version,
	})
	if err != nil {
		log.Error("failed to build server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	srv := s.HTTPServer(cfg)

	go func() {
		log.Info("echo listening",
			slog.String("addr", cfg.Server.Addr),
			slog.Int("max_in_flight", cfg.Admission.MaxInFlight),
			slog.Int("max_pending", cfg.Admission.Pending()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("shutdown complete")
}

func newLimiter(cfg *config.Config, log *slog.Logger) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	memory := func() ratelimit.Limiter {
		return ratelimit.NewMemoryLimiter(
			time.Duration(cfg.RateLimit.Memory.TTLSeconds)*time.Second,
			time.Duration(cfg.RateLimit.Memory.CleanupSeconds)*time.Second,
		)
	}

	switch strings.ToLower(cfg.RateLimit.Backend) {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable; falling back to memory limiter", slog.String("error", err.Error()))
			_ = rdb.Close()
			return memory()
		}
		return ratelimit.NewRedisLimiter(rdb, time.Duration(cfg.RateLimit.Memory.TTLSeconds)*time.Second)
	default:
		return memory()
	}
}
