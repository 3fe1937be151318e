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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/pauljones0/brick-resale-tracker/internal/cache"
	"github.com/pauljones0/brick-resale-tracker/internal/config"
	"github.com/pauljones0/brick-resale-tracker/internal/metrics"
	"github.com/pauljones0/brick-resale-tracker/internal/processor"
	"github.com/pauljones0/brick-resale-tracker/internal/query"
	"github.com/pauljones0/brick-resale-tracker/internal/scraper"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

func main() {
	slog.Info("Starting brick resale tracker server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Critical error initializing record store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Both stay nil interfaces when Redis is not configured.
	var indicatorCache query.IndicatorCache
	var invalidator processor.CacheInvalidator
	if cfg.RedisAddr != "" {
		c, err := cache.NewIndicatorCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.IndicatorCacheTTL)
		if err != nil {
			slog.Warn("Indicator cache disabled", "error", err)
		} else {
			defer c.Close()
			indicatorCache = c
			invalidator = c
		}
	}

	selectors := scraper.LoadConfig(cfg.SelectorsConfigPath)
	fetcher, closeFetcher := newFetcher(cfg)
	defer closeFetcher()

	p := processor.New(store, scraper.NewExtractor(selectors), fetcher, invalidator, m, cfg)
	engine := query.NewEngine(store, indicatorCache, m)
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()
	srv := &Server{processor: p, engine: engine, now: time.Now, baseCtx: runCtx}

	var scheduler *cron.Cron
	if cfg.IngestSchedule != "" {
		scheduler = cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		)
		if _, err := scheduler.AddFunc(cfg.IngestSchedule, srv.runIngest); err != nil {
			slog.Error("Failed to schedule ingestion", "schedule", cfg.IngestSchedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("Scheduled ingestion", "schedule", cfg.IngestSchedule)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		stopRuns()
		if !srv.waitForRuns(shutdownCtx) {
			slog.Warn("Ingestion run still stopping at shutdown")
		}
		if scheduler != nil {
			select {
			case <-scheduler.Stop().Done():
			case <-shutdownCtx.Done():
				slog.Warn("Scheduled ingestion still running at shutdown")
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		return storage.NewFirestoreStore(ctx, cfg.ProjectID)
	case config.BackendPostgres:
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newFetcher(cfg *config.Config) (scraper.Fetcher, func()) {
	if cfg.FetchMode == config.FetchModeBrowser {
		b := scraper.NewBrowserFetcher(cfg)
		return b, b.Close
	}
	return scraper.NewHTTPFetcher(cfg), func() {}
}
