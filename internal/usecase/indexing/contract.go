package indexing

import (
	"context"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// RowSource streams inventory rows in batches.
type RowSource interface {
	ForEachBatch(ctx context.Context, size int, fn func([]inventory.Row) error) error
}

// VectorWriter stores record vectors under a namespace.
type VectorWriter interface {
	EnsureIndex(ctx context.Context, dim int) error
	DropIndex(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error
	Reset(ctx context.Context, namespace string) error
}
