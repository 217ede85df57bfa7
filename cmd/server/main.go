package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-prices/api"
	"github.com/aluiziolira/go-scrape-prices/cache"
	"github.com/aluiziolira/go-scrape-prices/config"
	"github.com/aluiziolira/go-scrape-prices/pipeline"
	"github.com/aluiziolira/go-scrape-prices/scraper"
	"github.com/aluiziolira/go-scrape-prices/sources"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Verbose {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := scraper.NewMetrics()
	adapters, err := sources.NewAll(cfg.Sources, sources.Deps{Config: cfg, Metrics: metrics})
	if err != nil {
		return fmt.Errorf("build sources: %w", err)
	}

	resultCache, closeCache := newCache(ctx, cfg, logger)
	defer closeCache()

	agg, err := pipeline.NewAggregator(adapters, cfg, metrics, pipeline.WithCache(resultCache))
	if err != nil {
		return fmt.Errorf("build aggregator: %w", err)
	}

	// Leave room past the per-store deadline for grouping and encoding.
	handler := api.NewRouter(api.NewHandlers(agg, logger), metrics, cfg.SourceTimeout+10*time.Second)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SourceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}()

	logger.Info("server starting",
		slog.String("addr", cfg.HTTPAddr),
		slog.Any("stores", agg.Sources()),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	<-shutdownDone
	return nil
}

// newCache prefers Redis when an address is configured and reachable and
// falls back to the in-process cache otherwise.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("using redis cache", slog.String("addr", cfg.RedisAddr))
			return cache.NewRedis(client, cfg.CacheTTL), func() { _ = client.Close() }
		}

		logger.Warn("redis unavailable, using memory cache",
			slog.String("addr", cfg.RedisAddr),
			slog.Any("error", err),
		)
		_ = client.Close()
	}
	return cache.NewMemory(cfg.CacheSize, cfg.CacheTTL), func() {}
}
