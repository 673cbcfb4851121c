// Command server answers on-demand drone route queries over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"drone-route-planner/internal/api"
	"drone-route-planner/internal/cache"
	"drone-route-planner/internal/pipeline"
	"drone-route-planner/internal/pkg/config"
	"drone-route-planner/internal/pkg/logging"
	"drone-route-planner/internal/store"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default: config.yaml in . or ./configs)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing or broken dataset is not fatal: the grid can be built later
	// through /grid/rebuild.
	st, err := pipeline.Build(cfg, pipeline.Overrides{}, logger)
	if err != nil {
		slog.Warn("initial grid not built, call /grid/rebuild once data is in place", "error", err)
	}

	opts := api.Options{
		Builder: func(_ context.Context, ov pipeline.Overrides) (*pipeline.State, error) {
			return pipeline.Build(cfg, ov, logger)
		},
		CacheTTL: cfg.CacheTTL(),
		Logger:   logger,
	}

	// Cache
	if cfg.Cache.Enabled {
		c, err := newCache(cfg)
		if err != nil {
			slog.Warn("valkey unavailable, using in-memory cache", "error", err)
			c = cache.NewMemory(cfg.Cache.MemorySize)
		}
		defer c.Close()
		opts.Cache = c
	}

	// Stored batch runs
	if cfg.Output.SQLitePath != "" {
		db, err := store.OpenSQLite(ctx, cfg.Output.SQLitePath)
		if err != nil {
			slog.Warn("route store unavailable", "path", cfg.Output.SQLitePath, "error", err)
		} else {
			defer db.Close()
			opts.Store = db
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.New(st, opts).Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("route server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.ValkeyAddr == "" {
		slog.Info("using in-memory route cache", "size", cfg.Cache.MemorySize)
		return cache.NewMemory(cfg.Cache.MemorySize), nil
	}
	v, err := cache.NewValkey(cfg.Cache.ValkeyAddr)
	if err != nil {
		return nil, err
	}
	slog.Info("using valkey route cache", "addr", cfg.Cache.ValkeyAddr)
	return v, nil
}
