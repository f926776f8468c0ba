package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/bootstrap"
	"github.com/kailas-cloud/autorag/internal/config"
	logpkg "github.com/kailas-cloud/autorag/internal/logger"
	"github.com/kailas-cloud/autorag/internal/metrics"
	inventoryrepo "github.com/kailas-cloud/autorag/internal/repository/inventory"
	"github.com/kailas-cloud/autorag/internal/usecase/indexing"
	"github.com/kailas-cloud/autorag/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	namespace := flag.String("namespace", cfg.Retrieval.Namespace, "vector namespace to populate")
	batchSize := flag.Int("batch", cfg.Indexer.BatchSize, "rows embedded per round trip")
	reset := flag.Bool("reset", cfg.Indexer.Reset, "delete the namespace's vectors before indexing")
	rebuild := flag.Bool("rebuild", cfg.Indexer.Rebuild, "drop and recreate the index before indexing (implies -reset)")
	flag.Parse()

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting autorag indexer",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
		zap.String("index", cfg.Retrieval.Index),
		zap.String("namespace", *namespace),
		zap.Bool("reset", *reset),
		zap.Bool("rebuild", *rebuild),
	)

	metrics.RegisterProviderMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vector, err := bootstrap.OpenVector(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Vector backend not ready", zap.Error(err))
	}
	defer vector.Close()
	if vector.Backend == nil {
		logger.Fatal("VECTOR_ENDPOINT missing")
	}

	// Documents are embedded without the cache: every row is embedded once per run.
	embedder := bootstrap.BuildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, nil, 0, logger)
	if embedder == nil {
		logger.Fatal("OPENAI_API_KEY missing")
	}

	pool := inventoryrepo.NewLazyPool(inventoryrepo.PoolConfig{
		URL:      cfg.Store.URL,
		Password: cfg.Store.Password,
		MaxConns: cfg.Store.MaxConns,
	})
	defer pool.Close()
	records := inventoryrepo.New(pool, cfg.Store.Table, cfg.Images.BaseURL)

	svc := indexing.New(records, vector.Backend, embedder, indexing.Options{
		Namespace: *namespace,
		BatchSize: *batchSize,
		Reset:     *reset,
		Rebuild:   *rebuild,
	}, logger)

	start := time.Now()
	stats, err := svc.Run(ctx)
	if err != nil {
		logger.Fatal("Indexing failed", zap.Error(err), zap.Int("indexed", stats.Indexed))
	}
	logger.Info("Indexer finished",
		zap.Int("indexed", stats.Indexed),
		zap.Duration("elapsed", time.Since(start)),
	)
}
