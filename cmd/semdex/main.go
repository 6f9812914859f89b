package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/config"
	"github.com/semdex-io/semdex/internal/db"
	dbMemory "github.com/semdex-io/semdex/internal/db/memory"
	dbRedis "github.com/semdex-io/semdex/internal/db/redis"
	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/embedding/hash"
	"github.com/semdex-io/semdex/internal/engine"
	"github.com/semdex-io/semdex/internal/index"
	logpkg "github.com/semdex-io/semdex/internal/logger"
	"github.com/semdex-io/semdex/internal/metrics"
	budgetrepo "github.com/semdex-io/semdex/internal/repository/budget"
	"github.com/semdex-io/semdex/internal/repository/corpus"
	"github.com/semdex-io/semdex/internal/repository/embcache"
	chiTransport "github.com/semdex-io/semdex/internal/transport/chi"
	ollamaEmb "github.com/semdex-io/semdex/internal/transport/ollama"
	openaiEmb "github.com/semdex-io/semdex/internal/transport/openai"
	embeddinguc "github.com/semdex-io/semdex/internal/usecase/embedding"
	healthuc "github.com/semdex-io/semdex/internal/usecase/health"
	ingestuc "github.com/semdex-io/semdex/internal/usecase/ingest"
	retrievaluc "github.com/semdex-io/semdex/internal/usecase/retrieval"
	"github.com/semdex-io/semdex/internal/version"
)

func main() {
	_ = godotenv.Load()

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

	logger.Info("Starting semdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	corpusStore, err := corpus.Open(filepath.Join(cfg.Storage.DataDir, "corpus.db"))
	if err != nil {
		logger.Fatal("Failed to open corpus store", zap.Error(err))
	}
	defer corpusStore.Close()

	ctx := context.Background()

	// Key-value store backing the embedding cache and budget counters.
	// Optional: with no backend configured every embedding is recomputed.
	var kvStore db.Store
	switch cfg.Embedding.Cache.Backend {
	case "redis":
		kvStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Embedding.Cache.Addrs,
			Password: cfg.Embedding.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		readiness := time.Duration(cfg.Embedding.Cache.ReadinessTimeoutSec) * time.Second
		if err := kvStore.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Embedding.Cache.Addrs))
	case "memory":
		kvStore = dbMemory.NewStore()
	}
	if kvStore != nil {
		defer kvStore.Close()
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Single BudgetTracker shared by both embedder chains.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Embedding.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		if kvStore != nil {
			budget.WithStore(ctx, budgetrepo.New(kvStore, 48*time.Hour, 62*24*time.Hour))
		}
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	base, err := buildProvider(cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding provider", zap.Error(err))
	}
	docEmbedder := decorateEmbedder(
		base, cfg.Embedding, cfg.Embedding.DocumentInstruction, kvStore, budgetChecker, logger,
	)
	queryEmbedder := decorateEmbedder(
		base, cfg.Embedding, cfg.Embedding.QueryInstruction, kvStore, budgetChecker, logger,
	)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimension", cfg.Embedding.Dimension),
	)

	eng := engine.New(logger)

	ingestSvc, err := ingestuc.New(corpusStore, eng, docEmbedder, ingestuc.Config{
		Index: index.Config{
			Dimension:      cfg.Embedding.Dimension,
			MaxElements:    cfg.Index.MaxElements,
			M:              cfg.Index.M,
			EFConstruction: cfg.Index.EFConstruction,
			EFSearch:       cfg.Index.EFSearch,
		},
		BatchSize: cfg.Ingest.BatchSize,
		Workers:   cfg.Ingest.Workers,
		DataDir:   cfg.Storage.DataDir,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ingest service", zap.Error(err))
	}

	retrievalSvc := retrievaluc.New(eng, queryEmbedder, retrievaluc.Options{
		Model:             cfg.Embedding.Model,
		RequestTimeout:    time.Duration(cfg.Search.RequestTimeoutSec) * time.Second,
		QAMinScore:        float32(cfg.Search.QAMinScore),
		QAMaxContextChars: cfg.Search.QAMaxContextChars,
	}, logger)

	healthSvc := healthuc.New(eng, corpusStore, newEmbeddingHealthChecker(queryEmbedder))

	if err := restoreState(ctx, cfg, eng, ingestSvc, corpusStore, logger); err != nil {
		logger.Fatal("Failed to restore serving state", zap.Error(err))
	}

	server := chiTransport.NewServer(retrievalSvc, ingestSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
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

// restoreState brings the engine to Ready at startup: load the persisted
// pair when it exists, otherwise rebuild from the corpus store, otherwise
// start Unready and wait for ingestion. Corrupt persisted state is fatal.
func restoreState(
	ctx context.Context,
	cfg config.Config,
	eng *engine.Engine,
	ingestSvc *ingestuc.Service,
	corpusStore *corpus.Store,
	logger *zap.Logger,
) error {
	st, err := engine.LoadState(cfg.Storage.DataDir)
	switch {
	case err == nil:
		if dim := st.Index.Dimension(); dim != cfg.Embedding.Dimension {
			return fmt.Errorf("persisted index dimension %d does not match embedding.dimension %d; "+
				"delete the data directory or fix the config", dim, cfg.Embedding.Dimension)
		}
		eng.Install(st)
		logger.Info("Loaded persisted index", zap.Int("documents", st.Docs.Len()))
		return nil
	case errors.Is(err, domain.ErrCorruptIndex):
		return fmt.Errorf("%w (rebuild by deleting the index pair and restarting)", err)
	case os.IsNotExist(err):
		// never saved, fall through
	default:
		return err
	}

	docs, err := corpusStore.All(ctx)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	if len(docs) == 0 {
		logger.Info("No persisted state and empty corpus, starting unready")
		return nil
	}

	logger.Info("Rebuilding index from corpus", zap.Int("documents", len(docs)))
	if _, err := ingestSvc.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild from corpus: %w", err)
	}
	return nil
}

// buildProvider creates the base embedding provider from config.
func buildProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	case "ollama":
		return ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Logger:     logger,
		}), nil
	case "hash":
		return hash.New(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

// embedderChain is the assembled decorator stack. Ingest consumes the
// batch side, retrieval and health the single side.
type embedderChain interface {
	domain.Embedder
	domain.BatchEmbedder
}

// decorateEmbedder assembles the chain: provider -> Cached -> Instrumented -> Instruction.
func decorateEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) embedderChain {
	embedder := base
	if store != nil {
		embedder = embcache.New(embedder, store, metrics.EmbeddingCacheTotal, logger)
	}

	chain := embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, budget, logger,
	)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(chain, instruction)
	}

	return chain
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
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
