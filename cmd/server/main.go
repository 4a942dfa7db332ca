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

	"hatitenang-backend/internal/config"
	"hatitenang-backend/internal/database"
	"hatitenang-backend/internal/handlers"
	"hatitenang-backend/internal/logger"
	"hatitenang-backend/internal/middleware"
	"hatitenang-backend/internal/repository"
	"hatitenang-backend/internal/router"
	"hatitenang-backend/internal/services"
	"hatitenang-backend/internal/websocket"
	"hatitenang-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load configuration ────
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("production")
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Env)
	slog.Info("starting Hati Tenang backend", "env", cfg.Env, "provider", cfg.ModelProvider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Model client ────
	client, closeClient, err := newModelClient(ctx, cfg)
	if err != nil {
		slog.Error("model client initialization failed", "error", err)
		os.Exit(1)
	}
	defer closeClient()
	modelClient := services.WithTimeout(client, cfg.ModelTimeout)
	slog.Info("model client ready", "provider", modelClient.Name(), "timeout", cfg.ModelTimeout)

	// ──── Step 3: Optional Redis (rate limiting, usage queue) ────
	var rateStore middleware.RateStore
	var recorder services.UsageRecorder = services.LogRecorder{}
	var workerPool *worker.Pool

	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			slog.Error("Redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		rateStore = middleware.NewRedisStore(redisClient)
		slog.Info("Redis connected")

		// ──── Step 4: Optional usage ledger ────
		if cfg.UsageLedgerEnabled() {
			pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, int32(cfg.UsageWorkers+1))
			if err != nil {
				slog.Error("PostgreSQL connection failed", "error", err)
				os.Exit(1)
			}
			defer pool.Close()

			if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
				slog.Error("database migration failed", "error", err)
				os.Exit(1)
			}

			workerPool = worker.NewPool(redisClient, repository.NewUsageRepo(pool), cfg.UsageWorkers)
			workerPool.Start(ctx)
			recorder = worker.NewQueueRecorder(redisClient)
			slog.Info("usage ledger enabled", "workers", cfg.UsageWorkers)
		}
	}

	if rateStore == nil {
		memStore := middleware.NewMemoryStore(time.Minute)
		defer memStore.Close()
		rateStore = memStore
	}

	// ──── Step 5: Services and handlers ────
	analyzer := services.NewStressAnalyzer(modelClient, recorder)
	responder := services.NewConversationResponder(modelClient, recorder, nil)

	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth = middleware.NewJWTAuth(cfg.JWTSecret)
		slog.Info("bearer token auth enabled")
	}

	limiter := middleware.NewRateLimiter(rateStore, cfg.RateLimitPerMinute, time.Minute)
	wsHub := websocket.NewHub(analyzer, responder, limiter, cfg.CORSOrigins)

	r := router.New(
		handlers.NewHealthHandler(modelClient.Name()),
		handlers.NewStressHandler(analyzer),
		handlers.NewConversationHandler(responder),
		wsHub,
		limiter,
		jwtAuth,
		cfg.CORSOrigins,
		cfg.TrustProxy,
	)

	// ──── Step 6: HTTP server ────
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ModelTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		slog.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wsHub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	if workerPool != nil {
		workerPool.Stop()
	}
	slog.Info("server stopped")
}

// newModelClient builds the configured provider backend. The returned close
// function is always safe to call.
func newModelClient(ctx context.Context, cfg *config.Config) (services.ModelClient, func(), error) {
	switch cfg.ModelProvider {
	case config.ProviderGemini:
		client, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, float32(cfg.ModelTemperature))
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	default:
		client, err := services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ModelTemperature)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
}
