package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/bootstrap"
	"github.com/kailas-cloud/autorag/internal/config"
	logpkg "github.com/kailas-cloud/autorag/internal/logger"
	"github.com/kailas-cloud/autorag/internal/metrics"
	inventoryrepo "github.com/kailas-cloud/autorag/internal/repository/inventory"
	"github.com/kailas-cloud/autorag/internal/repository/retrieval"
	chiTransport "github.com/kailas-cloud/autorag/internal/transport/chi"
	"github.com/kailas-cloud/autorag/internal/transport/images"
	"github.com/kailas-cloud/autorag/internal/usecase/rag"
	"github.com/kailas-cloud/autorag/internal/version"
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

	logger.Info("Starting autorag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
		zap.String("namespace", cfg.Retrieval.Namespace),
	)
	if err := cfg.Preflight(); err != nil {
		// Не падаем: RAG-эндпоинты сами ответят 500 с именем ключа.
		logger.Warn("Configuration incomplete", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterRAGMetrics()

	ctx := context.Background()
	vector, err := bootstrap.OpenVector(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Vector backend not ready", zap.Error(err))
	}
	defer vector.Close()

	// Build embedder and completion clients (composition root)
	queryEmbedder := bootstrap.BuildEmbedder(
		cfg.Embedding, cfg.Embedding.QueryInstruction,
		vector.Cache, time.Duration(cfg.Cache.TTLSec)*time.Second, logger,
	)
	completer := bootstrap.BuildCompleter(cfg.Completion, logger)

	// Repositories
	var backend retrieval.Backend
	if vector.Backend != nil {
		backend = vector.Backend
	}
	retriever := retrieval.New(queryEmbedder, backend)

	pool := inventoryrepo.NewLazyPool(inventoryrepo.PoolConfig{
		URL:      cfg.Store.URL,
		Password: cfg.Store.Password,
		MaxConns: cfg.Store.MaxConns,
	})
	defer pool.Close()
	records := inventoryrepo.New(pool, cfg.Store.Table, cfg.Images.BaseURL)

	// Use case services
	ragSvc := rag.New(retriever, records, completer, rag.Options{
		TopK:            cfg.Retrieval.TopK,
		Namespace:       cfg.Retrieval.Namespace,
		MaxContextItems: cfg.RAG.MaxContextItems,
		Preflight:       cfg.Preflight,
	})

	healthSvc := bootstrap.BuildHealth(cfg, vector.Backend, records, completer)

	var imageResolver chiTransport.ImageResolver
	if cfg.Images.BaseURL != "" {
		imageResolver = images.New(cfg.Images.BaseURL, nil, logger)
	}

	if cfg.Tracing.ServiceName != "" {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
	}

	server := chiTransport.NewServer(ragSvc, healthSvc, imageResolver, logger)
	handler := chiTransport.NewRouter(server, logger, chiTransport.RouterOptions{
		ServiceName: cfg.Tracing.ServiceName,
		ExposeStack: env != "prod",
		CORSOrigin:  cfg.HTTP.CORSOrigin,
		RateLimit:   cfg.HTTP.RateLimit,
		RateBurst:   cfg.HTTP.RateBurst,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
