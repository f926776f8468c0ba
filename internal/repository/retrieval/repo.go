// Package retrieval implements the semantic search client over the vector index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/autorag/internal/domain"
)

// DefaultFields are the metadata fields requested with every hit.
var DefaultFields = []string{"chunk_text", "Brand", "Model", "Price", "ID"}

// Backend runs a nearest-neighbour search for an already embedded query.
type Backend interface {
	SearchVector(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.RetrievalHit, error)
}

// Repo implements usecase/rag.Retriever: it embeds the query and searches the backend.
type Repo struct {
	embedder domain.Embedder
	backend  Backend
}

// New creates a retrieval repository. Either argument may be nil when the corresponding
// credentials are not configured; Search then reports a configuration error.
func New(embedder domain.Embedder, backend Backend) *Repo {
	return &Repo{embedder: embedder, backend: backend}
}

// Search returns up to topK hits for query in namespace.
// Every failure wraps domain.ErrRetrievalFailed; missing credentials also wrap domain.ErrNotConfigured.
func (r *Repo) Search(ctx context.Context, query string, topK int, namespace string) ([]domain.RetrievalHit, error) {
	if r.backend == nil {
		return nil, notConfigured("VECTOR_ENDPOINT")
	}
	if r.embedder == nil {
		return nil, notConfigured("OPENAI_API_KEY")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: empty query: %w", domain.ErrRetrievalFailed)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("search: topK must be positive: %w", domain.ErrRetrievalFailed)
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrRetrievalFailed, err)
	}
	if len(emb.Embedding) == 0 {
		return nil, fmt.Errorf("embed query: empty vector: %w", domain.ErrRetrievalFailed)
	}

	hits, err := r.backend.SearchVector(ctx, emb.Embedding, topK, namespace)
	if err != nil {
		if errors.Is(err, domain.ErrRetrievalFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("search %s: %w: %w", namespace, domain.ErrRetrievalFailed, err)
	}
	return hits, nil
}

func notConfigured(key string) error {
	return fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, domain.NewConfigurationError(key))
}
