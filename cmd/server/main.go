// Package main is the entrypoint for the Citadel API server.
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

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/api"
	"github.com/kiranshivaraju/citadel/internal/api/handler"
	mw "github.com/kiranshivaraju/citadel/internal/api/middleware"
	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/kiranshivaraju/citadel/internal/config"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/session"
	"github.com/kiranshivaraju/citadel/internal/settings"
	"github.com/kiranshivaraju/citadel/internal/store"
	"github.com/kiranshivaraju/citadel/internal/watcher"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("config loaded", "env", cfg.Server.Env, "cloud_analysis", cfg.AI.AllowCloudAnalysis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Settings store
	settingsStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Cache
	c, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// 4. Services
	hub := eventbus.NewHub()
	settingsSvc := settings.NewService(settingsStore, c, hub)
	go func() {
		if err := settingsSvc.Run(ctx); err != nil {
			slog.Error("settings relay stopped", "error", err)
		}
	}()

	sessions := session.NewStore(c, cfg.Session.TTL)
	analyzer := ai.NewAnalyzer(ai.NewOptions(cfg.AI))
	analyses := ai.NewAnalysisService(analyzer, settingsSvc, sessions, hub)
	defer analyses.Wait()

	if cfg.Watcher.Dir != "" {
		if err := startWatcher(ctx, cfg.Watcher, analyses); err != nil {
			return err
		}
	}

	// 5. Build router with dependencies
	deps := api.Dependencies{
		Session:   mw.NewSession(cfg.Session.TTL, !cfg.Development()),
		RateLimit: mw.NewRateLimit(c, cfg.Session.RateLimit),

		HealthHandler: handler.NewHealthHandler(settingsStore, c),

		UploadAnalysis: handler.NewUploadHandler(analyses),
		ListAnalyses:   handler.NewListAnalysesHandler(sessions),
		GetAnalysis:    handler.NewGetAnalysisHandler(sessions),
		DeleteAnalysis: handler.NewDeleteAnalysisHandler(sessions),
		AnalysisEvents: handler.NewAnalysisEventsHandler(sessions, hub),
		ExportAnalysis: handler.NewExportHandler(sessions),

		GetAISettings:        handler.NewGetAISettingsHandler(settingsSvc),
		PutAISettings:        handler.NewPutAISettingsHandler(settingsSvc),
		GetDashboardSettings: handler.NewGetDashboardSettingsHandler(settingsSvc),
		PutDashboardSettings: handler.NewPutDashboardSettingsHandler(settingsSvc),
		SettingsEvents:       handler.NewSettingsEventsHandler(settingsSvc),

		ListProviders: handler.NewListProvidersHandler(settingsSvc),
		TestProvider:  handler.NewTestProviderHandler(settingsSvc, analyzer.Prober()),
		PullModel:     handler.NewPullModelHandler(settingsSvc, analyzer.Prober()),
	}
	if cfg.Development() {
		proxy, err := handler.NewDevProxy(nil)
		if err != nil {
			return fmt.Errorf("create dev proxy: %w", err)
		}
		deps.DevProxy = proxy
		slog.Info("dev proxy mounted", "prefixes", proxy.Prefixes())
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Event streams stay open for the whole analysis; no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStore connects to Postgres and applies migrations when DATABASE_URL is
// set, and falls back to process memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		slog.Warn("DATABASE_URL not set, settings are kept in memory")
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, cfg.Server.MigrationsDir); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return store.NewPostgresStore(pool), pool.Close, nil
}

// openCache connects to Redis when REDIS_URL is set, and falls back to an
// in-process cache otherwise.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Redis.URL == "" {
		slog.Warn("REDIS_URL not set, sessions are kept in memory")
		return cache.NewMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, nil
}

func startWatcher(ctx context.Context, cfg config.WatcherConfig, svc watcher.Submitter) error {
	wcfg := watcher.DefaultConfig(cfg.Dir, cfg.Session)
	wcfg.OnSubmit = func(a *models.LogAnalysis) {
		slog.Info("watched file submitted", "file", a.FileName, "analysis_id", a.ID)
	}
	w, err := watcher.New(wcfg, svc)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Error("watcher stopped", "error", err)
		}
	}()
	return nil
}
