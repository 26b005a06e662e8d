package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/api"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/auth"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/config"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/db"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/limits"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/live"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/metrics"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/modelsource"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/session"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Model source: files on disk, optionally fronted by Redis.
	var models modelsource.Fetcher = modelsource.NewDirFetcher(cfg.ModelDir)
	if cfg.RedisAddr != "" {
		kv := modelsource.NewRedisKV(cfg.RedisAddr)
		if err := kv.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, serving models uncached", "addr", cfg.RedisAddr, "error", err)
		} else {
			models = modelsource.NewCachedFetcher(models, kv, modelsource.DefaultCacheTTL)
			slog.Info("model cache enabled", "addr", cfg.RedisAddr)
		}
		defer kv.Close()
	}

	// Current limits: Postgres wins over a static file.
	var limitSrc limits.Source
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		limitSrc = limits.NewPGStore(pool)
	} else if cfg.CurrentLimitsFile != "" {
		fs, err := limits.LoadFile(cfg.CurrentLimitsFile)
		if err != nil {
			slog.Error("load current limits", "error", err)
			os.Exit(1)
		}
		limitSrc = fs
	}

	registry := session.NewRegistry(ctx, session.RegistryOptions{
		Width:   cfg.CanvasWidth,
		Height:  cfg.CanvasHeight,
		Cache:   engine.NewSharedCache(),
		Metrics: m,
	})

	hub := live.NewHub(registry, m)
	registry.SetSink(hub.Publish)
	go hub.Run(ctx)

	if cfg.NATSURL != "" {
		sub, err := stream.Connect(stream.Config{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
		}, registry)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		if err := sub.Start(); err != nil {
			slog.Error("subscribe to measurements", "error", err)
			os.Exit(1)
		}
		defer sub.Close()
	}

	authService := auth.NewService(cfg.JWTSecret)
	if !authService.Enabled() {
		slog.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	r := api.NewRouter(api.RouterConfig{
		Handler:   api.NewHandler(registry, models, limitSrc, cfg.MapsDir),
		Auth:      authService,
		Metrics:   m,
		Websocket: live.NewHandler(hub, authService, cfg.OriginHosts()),
		Origins:   cfg.Origins(),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)

		registry.CloseAll()
		cancel()
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
}
