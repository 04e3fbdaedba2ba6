// Package main is the entrypoint for the GetGlow API server.
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

	"github.com/joho/godotenv"

	"github.com/varunv-ux/getglow/internal/analysis"
	"github.com/varunv-ux/getglow/internal/api"
	"github.com/varunv-ux/getglow/internal/api/handler"
	mw "github.com/varunv-ux/getglow/internal/api/middleware"
	"github.com/varunv-ux/getglow/internal/api/response"
	"github.com/varunv-ux/getglow/internal/blob"
	"github.com/varunv-ux/getglow/internal/cache"
	"github.com/varunv-ux/getglow/internal/config"
	"github.com/varunv-ux/getglow/internal/imageproc"
	"github.com/varunv-ux/getglow/internal/inference/mock"
	"github.com/varunv-ux/getglow/internal/inference/openai"
	"github.com/varunv-ux/getglow/internal/progress"
	"github.com/varunv-ux/getglow/internal/store"
	"github.com/varunv-ux/getglow/pkg/models"
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
	// 1. Load config — fail fast on invalid config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"blob_backend", cfg.Blob.Backend,
		"progress_backend", cfg.Progress.Backend,
		"env", cfg.Server.Env)

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
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
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

	// 5. Create blob store
	blobs, err := blob.NewStore(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}

	// 6. Create vision provider
	provider, err := newProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create vision provider: %w", err)
	}
	slog.Info("vision provider initialized", "provider", provider.Name())

	// 7. Create progress bus
	bus, err := newBus(cfg)
	if err != nil {
		return fmt.Errorf("create progress bus: %w", err)
	}

	// 8. Wire the job service
	pgStore := store.NewPostgresStore(pool)
	pre := imageproc.New(cfg.Upload.MaxBytes, cfg.Upload.MaxDimension, cfg.Upload.JPEGQuality)
	jobs := analysis.NewService(pgStore, redisCache, blobs, pre, provider, bus,
		models.PromptConfig{
			SystemText:      cfg.AI.Prompt.SystemText,
			UserText:        cfg.AI.Prompt.UserText,
			Temperature:     cfg.AI.Prompt.Temperature,
			MaxOutputTokens: cfg.AI.Prompt.MaxOutputTokens,
		}, cfg.AI.InferenceTimeout)

	// 9. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMin),

		HealthHandler:    healthHandler(pgStore, redisCache),
		CreateJobHandler: handler.NewCreateJobHandler(jobs, cfg.Upload.MaxBytes),
		StartJobHandler:  handler.NewStartJobHandler(jobs),
		GetJobHandler:    handler.NewGetJobHandler(jobs),
		ListJobsHandler:  handler.NewListJobsHandler(jobs),
		DeleteJobHandler: handler.NewDeleteJobHandler(jobs),
		JobEventsHandler: handler.NewJobEventsHandler(jobs),
	}

	router := api.NewRouter(deps)

	// 10. Start HTTP server. WriteTimeout stays 0 so event streams are not
	// cut off mid-job; per-request deadlines come from the inference timeout.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
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

// newProvider selects the configured vision backend.
func newProvider(cfg config.AIConfig) (models.VisionProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Streaming), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// newBus selects the progress backend. Redis carries events across
// instances; memory is enough for a single process.
func newBus(cfg *config.Config) (progress.Bus, error) {
	switch cfg.Progress.Backend {
	case "redis":
		return progress.NewRedisBus(cfg.Redis.URL)
	case "memory":
		return progress.NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Progress.Backend)
	}
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
