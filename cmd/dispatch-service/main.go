// cmd/dispatch-service/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/database"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/observability"
	"vendor-dispatch/internal/dispatch/automation"
	"vendor-dispatch/internal/dispatch/history"
	"vendor-dispatch/internal/dispatch/prediction"
	"vendor-dispatch/internal/dispatch/ranker"
	"vendor-dispatch/internal/dispatch/ruleengine"
	"vendor-dispatch/internal/dispatch/scoring"
	"vendor-dispatch/internal/dispatch/service"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatch service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry (optional: metrics can also arrive
	// inline with each request) ---
	var store *history.Store
	var redisClient *database.RedisClient

	if cfg.Database.Postgres.Host != "" {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		// --- Init Redis with retry ---
		if cfg.Database.Redis.Address != "" {
			err = retryWithBackoff(func() error {
				var err error
				redisClient, err = database.NewRedis(cfg.Database.Redis)
				if err != nil {
					return err
				}
				return redisClient.Ping(ctx)
			}, 10, 2*time.Second, zapLog, "Redis connection")

			if err != nil {
				zapLog.Fatal("redis failed after retries", zap.Error(err))
			}
			defer redisClient.Close()
			zapLog.Info("Redis connected successfully")
		}

		store = history.NewStore(pg, redisClient, log)
	}

	// --- Build the decision pipeline ---
	engine, err := ruleengine.NewEngine(ruleengine.FactorWeightsFromConfig(cfg.Weights.Factors), log)
	if err != nil {
		zapLog.Fatal("rule engine init failed", zap.Error(err))
	}

	scorer, err := scoring.NewScorer(scoring.HybridWeightsFromConfig(cfg.Weights), log)
	if err != nil {
		zapLog.Fatal("hybrid scorer init failed", zap.Error(err))
	}

	var cache prediction.Cache
	if cfg.Predictive.CacheBackend == "redis" && redisClient != nil {
		cache = prediction.NewRedisCache(redisClient, time.Duration(cfg.Predictive.CacheTTL)*time.Millisecond)
	}
	predictor := prediction.NewClient(cfg.Predictive, cache, log)

	manager, err := automation.NewManager(cfg.Automation, log)
	if err != nil {
		zapLog.Fatal("automation manager init failed", zap.Error(err))
	}
	router := automation.NewRouter(manager, cfg.Automation, log)

	rk := ranker.New(engine, scorer, predictor, cfg.Ranker, log)
	svc := service.New(rk, router, store, obs, log)
	handler := service.NewHandler(svc, log)

	zapLog.Info("Decision pipeline initialized",
		zap.String("predictiveBaseURL", cfg.Predictive.BaseURL),
		zap.String("cacheBackend", cfg.Predictive.CacheBackend),
		zap.Bool("historyStore", store != nil),
	)

	// --- HTTP Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":       "healthy",
			"breakerState": predictor.Breaker().State().String(),
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/recommendations", handler.Recommendations)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Dispatch service stopped gracefully")
}
