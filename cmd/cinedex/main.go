package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/config"
	dbRedis "github.com/kailas-cloud/cinedex/internal/db/redis"
	"github.com/kailas-cloud/cinedex/internal/domain"
	"github.com/kailas-cloud/cinedex/internal/embedding"
	logpkg "github.com/kailas-cloud/cinedex/internal/logger"
	"github.com/kailas-cloud/cinedex/internal/metrics"
	"github.com/kailas-cloud/cinedex/internal/repository/embcache"
	"github.com/kailas-cloud/cinedex/internal/repository/localindex"
	"github.com/kailas-cloud/cinedex/internal/repository/redisearch"
	chiTransport "github.com/kailas-cloud/cinedex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/cinedex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/cinedex/internal/usecase/health"
	intentuc "github.com/kailas-cloud/cinedex/internal/usecase/intent"
	searchuc "github.com/kailas-cloud/cinedex/internal/usecase/search"
	"github.com/kailas-cloud/cinedex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cinedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("backends", len(cfg.Backends)),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	ctx := context.Background()

	// Database is optional: only redis backends and the embedding cache need it.
	var store *dbRedis.Store
	if cfg.Database.Enabled() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	}

	// Build backends — composition root
	backends := make(map[string]searchuc.Backend, len(cfg.Backends))
	providerCheckers := make(map[string]healthuc.ProviderChecker)

	for name, bcfg := range cfg.Backends {
		embedder, checker := buildEmbedder(bcfg, cfg, store, logger)
		if checker != nil {
			providerCheckers[bcfg.Provider] = checker
		}

		switch bcfg.Type {
		case "local":
			idx, err := localindex.Load(&localindex.Config{
				Name:       name,
				Dir:        bcfg.IndexDir,
				Dimensions: bcfg.Dimensions,
				Embedder:   embedder,
				Logger:     logger,
			})
			if err != nil {
				logger.Fatal("Failed to load local index",
					zap.String("backend", name), zap.Error(err))
			}
			backends[name] = idx
		case "redis":
			backends[name] = redisearch.New(&redisearch.Config{
				Name:      name,
				KeyPrefix: bcfg.KeyPrefix,
				IndexName: bcfg.IndexName,
				Embedder:  embedder,
				Logger:    logger,
			}, store)
		}

		logger.Info("Backend ready",
			zap.String("backend", name),
			zap.String("type", bcfg.Type),
			zap.String("provider", bcfg.Provider),
			zap.Int("dimensions", bcfg.Dimensions),
		)
	}

	registry := searchuc.NewRegistry(cfg.DefaultBackend(), backends)

	ranker, err := searchuc.NewRanker(logger, cfg.Search.Workers)
	if err != nil {
		logger.Fatal("Failed to create ranker", zap.Error(err))
	}
	defer ranker.Close()

	searchSvc := searchuc.New(registry, ranker, logger).
		WithLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK,
			cfg.Search.DefaultPoolSize, cfg.Search.MaxPoolSize)

	// Intent extraction is optional: without a chat provider /v1/ask
	// degrades to a plain semantic search.
	// Pass nil interface (not typed nil pointer!) when intent is not configured.
	var extractor chiTransport.IntentExtractor
	if cfg.Intent.Provider != "" {
		provCfg := cfg.Embedding.Providers[cfg.Intent.Provider]
		chat := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
			APIKey:  provCfg.APIKey,
			BaseURL: provCfg.BaseURL,
			Model:   cfg.Intent.Model,
			Logger:  logger,
		})
		extractor = intentuc.New(chat, logger)
		logger.Info("Intent extraction enabled",
			zap.String("provider", cfg.Intent.Provider),
			zap.String("model", cfg.Intent.Model),
		)
	}

	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	healthSvc := healthuc.New(dbPinger, providerCheckers)

	server := chiTransport.NewServer(searchSvc, extractor, healthSvc, registry, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder for one backend: either the
// deterministic local hashing embedder or an OpenAI-compatible provider
// wrapped in the cache decorator when a database is available. The second
// return value is the provider health checker, nil for local embedders.
func buildEmbedder(
	bcfg config.BackendConfig,
	cfg config.Config,
	store *dbRedis.Store,
	logger *zap.Logger,
) (domain.Embedder, healthuc.ProviderChecker) {
	if bcfg.Provider == "local" {
		return embedding.NewHashEmbedder(bcfg.Dimensions), nil
	}

	provCfg := cfg.Embedding.Providers[bcfg.Provider]
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      bcfg.Model,
		Dimensions: bcfg.Dimensions,
		Provider:   bcfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		ttl := time.Duration(cfg.Embedding.CacheTTLSec) * time.Second
		embedder = embcache.New(base, store, bcfg.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	return embedder, base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
