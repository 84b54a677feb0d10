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

	"github.com/atlascope/wikirag/internal/config"
	dbRedis "github.com/atlascope/wikirag/internal/db/redis"
	"github.com/atlascope/wikirag/internal/domain"
	"github.com/atlascope/wikirag/internal/embedding"
	"github.com/atlascope/wikirag/internal/generation/ollama"
	logpkg "github.com/atlascope/wikirag/internal/logger"
	"github.com/atlascope/wikirag/internal/metrics"
	"github.com/atlascope/wikirag/internal/prompt"
	historyrepo "github.com/atlascope/wikirag/internal/repository/history"
	chiTransport "github.com/atlascope/wikirag/internal/transport/chi"
	chatuc "github.com/atlascope/wikirag/internal/usecase/chat"
	healthuc "github.com/atlascope/wikirag/internal/usecase/health"
	ingestuc "github.com/atlascope/wikirag/internal/usecase/ingest"
	knowledgeuc "github.com/atlascope/wikirag/internal/usecase/knowledge"
	retrievaluc "github.com/atlascope/wikirag/internal/usecase/retrieval"
	"github.com/atlascope/wikirag/internal/vectorstore/qdrant"
	"github.com/atlascope/wikirag/internal/version"
	"github.com/atlascope/wikirag/internal/wiki"
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

	logger.Info("Starting wikirag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("qdrant_url", cfg.Qdrant.URL),
	)

	// Chat-history store
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	// Vector store — a collection mismatch is fatal at startup.
	vectorStore := qdrant.NewStore(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	if err := vectorStore.EnsureCollection(ctx, cfg.Qdrant.VectorSize); err != nil {
		logger.Fatal("Failed to ensure vector collection", zap.Error(err))
	}
	logger.Info("Vector collection ready",
		zap.String("collection", cfg.Qdrant.Collection),
		zap.Int("vector_size", cfg.Qdrant.VectorSize),
	)

	embedSvc := embedding.NewService(&embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Qdrant.VectorSize,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	generator := ollama.NewClient(ollama.Config{
		Host:    cfg.Generation.Host,
		Timeout: time.Duration(cfg.Generation.TimeoutSec) * time.Second,
	})

	historyRepo := historyrepo.New(store, cfg.Database.KeyPrefix)

	fetcherFor := func(language string) ingestuc.Fetcher {
		return wiki.NewFetcher(wiki.Config{
			Language: language,
			Timeout:  time.Duration(cfg.Wikipedia.TimeoutSec) * time.Second,
			Logger:   logger,
		})
	}

	ingestSvc := ingestuc.New(fetcherFor, embedSvc, vectorStore, logger)
	retrievalSvc := retrievaluc.New(embedSvc, vectorStore)
	knowledgeSvc := knowledgeuc.New(vectorStore)
	chatSvc := chatuc.New(
		&chunkRetriever{retrieval: retrievalSvc},
		prompt.NewBuilder(),
		&ollamaGenerator{client: generator},
		historyRepo,
		cfg.Generation.Model,
		logger,
	)
	healthSvc := healthuc.New(store, vectorStore, embedSvc, generator)

	server := chiTransport.NewServer(chatSvc, historyRepo, ingestSvc, knowledgeSvc, healthSvc, logger)

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

// chunkRetriever adapts the retrieval service to the chat usecase contract.
type chunkRetriever struct {
	retrieval *retrievaluc.Service
}

func (r *chunkRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	return r.retrieval.Search(ctx, query, retrievaluc.Options{Limit: topK})
}

// ollamaGenerator adapts the Ollama client to the chat usecase contract.
type ollamaGenerator struct {
	client *ollama.Client
}

func (g *ollamaGenerator) Generate(
	ctx context.Context, model, promptText string, temperature *float64,
) (string, error) {
	result, err := g.client.Generate(ctx, ollama.Request{
		Model:       model,
		Prompt:      promptText,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return result.Response, nil
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
						"detail": "internal error",
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
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
