// Package main is the entrypoint for the LeaseLens API server.
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

	"github.com/kiranshivaraju/leaselens/internal/ai"
	"github.com/kiranshivaraju/leaselens/internal/api"
	"github.com/kiranshivaraju/leaselens/internal/api/handler"
	mw "github.com/kiranshivaraju/leaselens/internal/api/middleware"
	"github.com/kiranshivaraju/leaselens/internal/api/response"
	"github.com/kiranshivaraju/leaselens/internal/cache"
	"github.com/kiranshivaraju/leaselens/internal/config"
	"github.com/kiranshivaraju/leaselens/internal/docload"
	"github.com/kiranshivaraju/leaselens/internal/extract"
	"github.com/kiranshivaraju/leaselens/internal/jobs"
	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/internal/logging"
	"github.com/kiranshivaraju/leaselens/internal/metrics"
	"github.com/kiranshivaraju/leaselens/internal/prompt"
	"github.com/kiranshivaraju/leaselens/internal/store"
	"github.com/kiranshivaraju/leaselens/pkg/models"
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
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireAI(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireServer(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stdout)
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider behind the instrumented client
	m := metrics.New()
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	client := ai.NewClient(aiProvider,
		ai.WithTimeout(cfg.AI.InferenceTimeout),
		ai.WithMetrics(m),
	)
	slog.Info("AI provider initialized", "provider", client.Name(), "model", client.Model())

	// 6. Session wiring
	prompts, err := prompt.New()
	if err != nil {
		return fmt.Errorf("load prompt templates: %w", err)
	}
	sessionOpts := []lease.Option{
		lease.WithPrompts(prompts),
		lease.WithExtractor(extract.New(
			extract.WithStrategy(extract.Strategy(cfg.Extract.Strategy)),
			extract.WithFallbackObserver(m.ParseFallback),
		)),
		lease.WithSampling(models.SamplingConfig{Temperature: cfg.AI.Temperature, MaxTokens: cfg.AI.MaxTokens}),
		lease.WithLoader(docload.New()),
	}
	factory := handler.SessionFactory{
		New: func() *lease.Session { return lease.NewSession(client, sessionOpts...) },
		Restore: func(snap *models.SessionSnapshot) *lease.Session {
			return lease.Restore(snap, client, sessionOpts...)
		},
	}

	sessionStore := cache.NewSessions(redisCache, cfg.Redis.SessionTTL)
	jobStore := cache.NewJobs(redisCache, cfg.Redis.JobStatusTTL)
	runner := jobs.NewRunner(sessionStore, jobStore, factory.Restore,
		jobs.WithTimeout(cfg.Server.JobTimeout),
		jobs.WithMetrics(m),
	)

	// 7. Build router with dependencies
	pgStore := store.NewPostgresStore(pool)
	sessions := handler.NewSessions(sessionStore, factory, runner)

	router := api.NewRouter(api.Dependencies{
		Auth:    mw.NewAuth(pgStore),
		Metrics: m,

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateSession: sessions.Create(),
		GetSession:    sessions.Get(),
		ResetSession:  sessions.Reset(),
		LoadLease:     sessions.LoadLease(),

		Summary:  sessions.Summary(),
		Issues:   sessions.Issues(),
		Price:    sessions.Price(),
		Rewrites: sessions.Rewrites(),
		Rights:   sessions.Rights(),

		Analyze: sessions.Analyze(),
		GetJob:  handler.NewGetJobHandler(runner),
		Report:  sessions.Report(),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	})

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("waiting for analysis jobs to finish")
	runner.Wait()

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
