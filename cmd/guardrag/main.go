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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/chunker"
	"github.com/kailas-cloud/guardrag/internal/config"
	dbRedis "github.com/kailas-cloud/guardrag/internal/db/redis"
	"github.com/kailas-cloud/guardrag/internal/domain"
	logpkg "github.com/kailas-cloud/guardrag/internal/logger"
	"github.com/kailas-cloud/guardrag/internal/metrics"
	"github.com/kailas-cloud/guardrag/internal/repository/corpus"
	"github.com/kailas-cloud/guardrag/internal/repository/embcache"
	"github.com/kailas-cloud/guardrag/internal/security"
	chiTransport "github.com/kailas-cloud/guardrag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/guardrag/internal/transport/openai"
	healthuc "github.com/kailas-cloud/guardrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/guardrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/guardrag/internal/usecase/query"
	"github.com/kailas-cloud/guardrag/internal/version"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

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

	logger.Info("Starting guardrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	ctx := context.Background()

	// Register Prometheus metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSecurityMetrics()

	// Optional Redis embedding cache
	var cacheStore *dbRedis.Store
	if cfg.Cache.Enabled {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Embedder chain: OpenAI-compatible base -> Redis cache
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	var embedder domain.Embedder = baseEmbedder
	if cacheStore != nil {
		embedder = embcache.New(
			baseEmbedder, cacheStore,
			time.Duration(cfg.Cache.TTLHours)*time.Hour,
			metrics.EmbeddingCacheTotal, logger,
		)
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", cacheStore != nil),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		TopP:        cfg.Generation.TopP,
		Provider:    cfg.Generation.Provider,
		Logger:      logger,
	})

	// Security pipeline
	hardFilter, err := security.NewHardFilter(hardRulesFromConfig(cfg.Security.HardPatterns))
	if err != nil {
		logger.Fatal("Invalid hard filter configuration", zap.Error(err))
	}
	heuristic := security.NewKeywordHeuristic(cfg.Security.SensitiveKeywords, cfg.Security.PublicKeywords)
	sentinel := security.NewSentinel(ctx, embedder, cfg.Security.SentinelLabels, logger)
	manager := security.NewManager(
		hardFilter, sentinel, heuristic,
		cfg.Security.SentinelThreshold, cfg.Security.SensitiveLabels, logger,
	)

	// Corpus
	corpusRepo := corpus.New(cfg.Storage.DataDir, logger)
	if err := corpusRepo.Load(); err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("Corpus loaded", zap.Int("chunks", corpusRepo.Len()))

	splitter, err := chunker.New(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	// Use case services
	ingestSvc := ingestuc.New(corpusRepo, splitter, manager, embedder, logger)
	recorder := queryuc.NewRecorder()
	querySvc := queryuc.New(
		corpusRepo, manager, embedder, generator, recorder,
		cfg.Query.TopK, cfg.Query.SimilarityThreshold, logger,
	)

	var cachePinger healthuc.CachePinger
	if cacheStore != nil {
		cachePinger = cacheStore
	}
	healthSvc := healthuc.New(corpusRepo, cachePinger, baseEmbedder, generator)

	server := chiTransport.NewServer(querySvc, ingestSvc, healthSvc, corpusRepo, recorder, logger)

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

func hardRulesFromConfig(rules []config.PatternRule) []security.PatternRule {
	out := make([]security.PatternRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, security.PatternRule{
			Name:       r.Name,
			Pattern:    r.Pattern,
			Flags:      r.Flags,
			Tag:        r.Tag,
			ForceAdmin: r.ForceAdmin,
		})
	}
	return out
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
