// Package indexing loads the inventory into the vector index the RAG pipeline searches.
package indexing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// DefaultBatchSize is the number of rows embedded and written per round trip.
const DefaultBatchSize = 64

// Options tunes one indexing run.
type Options struct {
	Namespace string
	BatchSize int
	// Reset deletes the namespace's existing vectors before the first write.
	Reset bool
	// Rebuild drops and recreates the index, e.g. after a schema or dimension change.
	// Implies Reset.
	Rebuild bool
}

// Stats summarizes a run.
type Stats struct {
	Rows    int
	Indexed int
	Skipped int
	Tokens  int
}

// Service embeds every row and writes it to the vector index.
type Service struct {
	rows     RowSource
	vectors  VectorWriter
	embedder domain.Embedder
	opts     Options
	logger   *zap.Logger
}

// New creates an indexing service.
func New(rows RowSource, vectors VectorWriter, embedder domain.Embedder, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Namespace == "" {
		opts.Namespace = "ns1"
	}
	if opts.Rebuild {
		opts.Reset = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rows: rows, vectors: vectors, embedder: embedder, opts: opts, logger: logger}
}

// Run indexes the whole inventory. The index is created from the dimension of the first
// embedding, so an empty inventory leaves the backend untouched.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	var (
		stats    Stats
		prepared bool
	)

	err := s.rows.ForEachBatch(ctx, s.opts.BatchSize, func(rows []inventory.Row) error {
		stats.Rows += len(rows)

		texts, kept := chunkTexts(rows)
		stats.Skipped += len(rows) - len(kept)
		if len(kept) == 0 {
			return nil
		}

		res, err := domain.EmbedAll(ctx, s.embedder, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(res.Embeddings) != len(kept) {
			return fmt.Errorf("embed batch: %w: got %d vectors for %d rows",
				domain.ErrEmbeddingProviderError, len(res.Embeddings), len(kept))
		}
		stats.Tokens += res.TotalTokens

		if !prepared {
			if err := s.prepare(ctx, len(res.Embeddings[0])); err != nil {
				return err
			}
			prepared = true
		}

		chunks := make([]domain.Chunk, len(kept))
		for i, row := range kept {
			chunks[i] = domain.Chunk{
				RecordID: inventory.RecordKey(row.ID),
				Fields:   inventory.ChunkFields(row),
				Vector:   res.Embeddings[i],
			}
		}
		if err := s.vectors.Upsert(ctx, s.opts.Namespace, chunks); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		stats.Indexed += len(chunks)

		s.logger.Info("Indexed batch",
			zap.Int("rows", len(rows)),
			zap.Int("indexed_total", stats.Indexed),
			zap.String("namespace", s.opts.Namespace),
		)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("index inventory: %w", err)
	}

	s.logger.Info("Indexing finished",
		zap.Int("rows", stats.Rows),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("tokens", stats.Tokens),
	)
	return stats, nil
}

func (s *Service) prepare(ctx context.Context, dim int) error {
	if dim == 0 {
		return fmt.Errorf("prepare index: %w: empty embedding", domain.ErrEmbeddingProviderError)
	}
	if s.opts.Rebuild {
		if err := s.vectors.DropIndex(ctx); err != nil {
			return fmt.Errorf("drop index: %w", err)
		}
		s.logger.Info("Index dropped", zap.Int("dim", dim))
	}
	if err := s.vectors.EnsureIndex(ctx, dim); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	if s.opts.Reset {
		if err := s.vectors.Reset(ctx, s.opts.Namespace); err != nil {
			return fmt.Errorf("reset namespace %s: %w", s.opts.Namespace, err)
		}
		s.logger.Info("Namespace reset", zap.String("namespace", s.opts.Namespace))
	}
	return nil
}

// chunkTexts skips rows without an id or without any text to embed.
func chunkTexts(rows []inventory.Row) ([]string, []inventory.Row) {
	texts := make([]string, 0, len(rows))
	kept := make([]inventory.Row, 0, len(rows))
	for _, r := range rows {
		if r.ID.IsZero() {
			continue
		}
		text := inventory.ChunkText(r)
		if strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, text)
		kept = append(kept, r)
	}
	return texts, kept
}
