// Package bootstrap assembles the components shared by the API server and the indexer.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/config"
	"github.com/kailas-cloud/autorag/internal/db"
	dbRedis "github.com/kailas-cloud/autorag/internal/db/redis"
	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/metrics"
	"github.com/kailas-cloud/autorag/internal/repository/embcache"
	"github.com/kailas-cloud/autorag/internal/repository/retrieval"
	openaiTransport "github.com/kailas-cloud/autorag/internal/transport/openai"
	"github.com/kailas-cloud/autorag/internal/transport/qdrant"
	embeddinguc "github.com/kailas-cloud/autorag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/autorag/internal/usecase/health"
)

// VectorBackend is what the RAG pipeline, the health report and the indexer need from a vector store.
type VectorBackend interface {
	retrieval.Backend
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context, dim int) error
	DropIndex(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error
	Reset(ctx context.Context, namespace string) error
}

// Vector holds the opened vector backend and, when Valkey/Redis is reachable, the embedding cache store.
// Backend is nil when no endpoint is configured.
type Vector struct {
	Backend VectorBackend
	Cache   db.KVStore
	closers []func()
}

// Close releases every connection opened by OpenVector.
func (v *Vector) Close() {
	for i := len(v.closers) - 1; i >= 0; i-- {
		v.closers[i]()
	}
}

// OpenVector connects to the configured retrieval backend.
func OpenVector(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Vector, error) {
	v := &Vector{}
	rc := cfg.Retrieval
	if len(rc.Addrs()) == 0 {
		logger.Warn("Vector endpoint not configured, retrieval disabled")
		return v, nil
	}
	timeout := time.Duration(rc.ReadinessTimeout) * time.Second

	switch rc.Backend {
	case config.BackendValkey, config.BackendRedis:
		store, err := openRedis(ctx, rc.Addrs(), rc.Username, rc.APIKey, rc.DB, timeout)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", rc.Backend, err)
		}
		v.closers = append(v.closers, store.Close)
		v.Backend = retrieval.NewRedisBackend(store, rc.Index)
		if cfg.Cache.Enabled {
			v.Cache = store
		}

	case config.BackendQdrant:
		store, err := qdrant.New(qdrant.Config{
			Addr:       rc.Addrs()[0],
			APIKey:     rc.APIKey,
			Collection: rc.Index,
			TLS:        rc.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("open qdrant: %w", err)
		}
		v.closers = append(v.closers, func() { _ = store.Close() })
		v.Backend = store

		if cfg.Cache.Enabled && len(cfg.Cache.Addrs) > 0 {
			cache, err := openRedis(ctx, cfg.Cache.Addrs, "", "", 0, timeout)
			if err != nil {
				// Кэш необязателен: без него просто дороже.
				logger.Warn("Embedding cache unavailable", zap.Error(err))
			} else {
				v.closers = append(v.closers, cache.Close)
				v.Cache = cache
			}
		}

	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", rc.Backend)
	}

	logger.Info("Vector backend ready",
		zap.String("backend", rc.Backend),
		zap.Strings("addrs", rc.Addrs()),
		zap.String("index", rc.Index),
		zap.Bool("embedding_cache", v.Cache != nil),
	)
	return v, nil
}

func openRedis(
	ctx context.Context, addrs []string, username, password string, dbIndex int, timeout time.Duration,
) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    addrs,
		Username: username,
		Password: password,
		DB:       dbIndex,
	})
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// BuildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// Returns nil when no API key is configured, so callers report the missing key on use.
func BuildEmbedder(
	ec config.EmbeddingConfig, instruction string, cache db.KVStore, cacheTTL time.Duration, logger *zap.Logger,
) domain.Embedder {
	if ec.APIKey == "" {
		return nil
	}

	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, embcache.Options{
			Model:      ec.Model,
			TTL:        cacheTTL,
			CacheTotal: metrics.EmbeddingCacheTotal,
		}, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, ec.BatchSize, logger)

	// Instruction prefix (outermost, cache key includes instruction)
	if instruction != "" {
		return domain.NewPrefixEmbedder(embedder, instruction)
	}
	return embedder
}

// BuildCompleter creates the chat model client.
func BuildCompleter(cc config.CompletionConfig, logger *zap.Logger) *openaiTransport.Completer {
	return openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:  cc.APIKey,
		BaseURL: cc.BaseURL,
		Model:   cc.Model,
		Logger:  logger,
	})
}

// BuildHealth reports only the components that are configured: the vector backend when
// an endpoint is set, the records store when DATABASE_URL is set and the completion provider
// when it has an API key. An unconfigured component is absent from the report.
func BuildHealth(
	cfg config.Config, vector VectorBackend, records healthuc.Pinger, completion healthuc.ProviderChecker,
) *healthuc.Service {
	var vectorPinger, recordsPinger healthuc.Pinger
	if vector != nil {
		vectorPinger = vector
	}
	if cfg.Store.URL != "" {
		recordsPinger = records
	}
	var checker healthuc.ProviderChecker
	if cfg.Completion.APIKey != "" {
		checker = completion
	}
	return healthuc.New(vectorPinger, recordsPinger, checker)
}
