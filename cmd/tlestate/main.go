package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/tlestate/internal/api"
	"github.com/star/tlestate/internal/auth"
	"github.com/star/tlestate/internal/config"
	"github.com/star/tlestate/internal/propagation"
	"github.com/star/tlestate/internal/tle"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(bootLogger, ".env")
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := config.NewLogger(cfg.Log)
	if err != nil {
		bootLogger.Error("invalid log configuration", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	logger.Info("TLE config",
		"fetch_enabled", cfg.TLE.EnableFetch,
		"source_url", cfg.TLE.SourceURL,
		"extra_urls", cfg.TLE.ExtraSourceURLs,
		"cache_dir", cfg.TLE.CacheDir,
		"max_age_seconds", cfg.TLE.MaxAge.Seconds(),
	)
	logger.Info("propagation config",
		"max_positions", cfg.Propagation.MaxPositions,
		"default_step_seconds", cfg.Propagation.DefaultStep.Seconds(),
		"max_concurrent_per_ip", cfg.Propagation.MaxConcurrentPerIP,
	)

	store := tle.NewStore()
	var fetcher *tle.Fetcher
	if cfg.TLE.EnableFetch {
		fetcher = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraSourceURLs...)
	}
	loader := tle.NewLoader(store, fetcher, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), logger)

	// Attempt to load cached TLE data on startup.
	if ds, err := loader.LoadCached(); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	} else {
		logger.Info("loaded TLE data from cache", "count", len(ds.Satellites), "cached_at", ds.FetchedAt.Format(time.RFC3339))
	}

	prop := propagation.NewPropagator(store, propagation.PropConfig{
		MaxPositions: cfg.Propagation.MaxPositions,
		DefaultStep:  cfg.Propagation.DefaultStep,
	}, logger)

	opts := api.Options{
		Store:              store,
		Propagator:         prop,
		FetchInterval:      cfg.TLE.FetchInterval,
		MaxConcurrentPerIP: cfg.Propagation.MaxConcurrentPerIP,
		TrustProxy:         cfg.TrustProxy,
	}
	if fetcher != nil {
		opts.Loader = loader
	}
	authCfg := auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token}
	srv := api.NewServer(cfg.HTTPAddr, logger, authCfg, opts)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go loader.Run(ctx, cfg.TLE.RefreshInterval, cfg.TLE.MaxAge)

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "auth_enabled", authCfg.Enabled, "tle_fetch_enabled", cfg.TLE.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
