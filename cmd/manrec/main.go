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

	"github.com/inkvine/manrec/internal/config"
	"github.com/inkvine/manrec/internal/db"
	dbRedis "github.com/inkvine/manrec/internal/db/redis"
	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/domain/catalog"
	"github.com/inkvine/manrec/internal/index/dense"
	"github.com/inkvine/manrec/internal/index/sparse"
	logpkg "github.com/inkvine/manrec/internal/logger"
	"github.com/inkvine/manrec/internal/metrics"
	"github.com/inkvine/manrec/internal/repository/artifacts"
	"github.com/inkvine/manrec/internal/repository/embcache"
	chiTransport "github.com/inkvine/manrec/internal/transport/chi"
	openaiEmb "github.com/inkvine/manrec/internal/transport/openai"
	fituc "github.com/inkvine/manrec/internal/usecase/fit"
	healthuc "github.com/inkvine/manrec/internal/usecase/health"
	recommenduc "github.com/inkvine/manrec/internal/usecase/recommend"
	"github.com/inkvine/manrec/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting manrec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("snapshot", cfg.Catalog.SnapshotPath),
	)

	ctx := context.Background()

	// Optional embedding cache. Without it every query embedding hits the
	// provider, which still works, just slower and pricier.
	var kv db.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
		kv = store
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRecommendMetrics()

	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, kv, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, kv, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	cat, err := catalog.LoadStore(cfg.Catalog.SnapshotPath)
	if err != nil {
		logger.Fatal("Failed to load catalog snapshot", zap.Error(err))
	}
	logger.Info("Catalog loaded",
		zap.Int("entries", cat.Len()),
		zap.String("fingerprint", cat.Fingerprint()[:12]),
	)

	artRepo := artifacts.New(cfg.Artifacts.Dir, logger)

	dix, vec, err := loadOrFit(ctx, cat, artRepo, docEmbedder, cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("Failed to build indices", zap.Error(err))
	}

	recSvc := recommenduc.New(cat, dix, vec, queryEmbedder, rankerWeights(cfg.Ranker))

	var cachePinger healthuc.CachePinger
	if kv != nil {
		cachePinger = kv
	}
	healthSvc := healthuc.New(recSvc, cachePinger, newEmbeddingHealthChecker(queryEmbedder))

	server := chiTransport.NewServer(recSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// loadOrFit restores both indices from disk when the artifacts match the
// current catalog, and refits from scratch otherwise.
func loadOrFit(
	ctx context.Context,
	cat *catalog.Store,
	artRepo *artifacts.Repository,
	docEmbedder domain.Embedder,
	embCfg config.EmbeddingConfig,
	logger *zap.Logger,
) (*dense.Index, *sparse.Vectorizer, error) {
	dix, vec, ok, err := artRepo.Load(cat.Fingerprint())
	if err != nil {
		return nil, nil, fmt.Errorf("load artifacts: %w", err)
	}
	if ok {
		logger.Info("Indices restored from artifacts",
			zap.Int("rows", dix.Len()),
			zap.Int("vocab", vec.VocabSize()),
		)
		return dix, vec, nil
	}

	logger.Info("No usable artifacts, fitting indices")
	fitSvc := fituc.New(fituc.Config{
		Embedder:  domain.AsBatchEmbedder(docEmbedder),
		Artifacts: artRepo,
		BatchSize: embCfg.BatchSize,
		Workers:   embCfg.FitWorkers,
		Logger:    logger,
	})
	return fitSvc.Fit(ctx, cat)
}

func rankerWeights(cfg config.RankerConfig) recommenduc.Weights {
	return recommenduc.Weights{
		Dense:            cfg.DenseWeight,
		Sparse:           cfg.SparseWeight,
		DirectTitleBoost: cfg.DirectTitleBoost,
		TitleTokenBoost:  cfg.KeywordTitleBoost,
		KeywordThreshold: cfg.KeywordThreshold,
		CandidatePool:    cfg.CandidatePool,
		TitleTokenMinLen: cfg.TitleTokenMinLen,
	}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Provider:   embCfg.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
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

			requestID := chiMiddleware.GetReqID(r.Context())
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
