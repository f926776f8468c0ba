package rag

import (
	"context"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// Retriever runs a semantic search over the vector index.
// Implementations report every failure mode (missing credentials, transport, malformed payload)
// as an error and never panic.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, namespace string) ([]domain.RetrievalHit, error)
}

// RecordStore hydrates inventory rows. An empty id set must return no rows without a query.
type RecordStore interface {
	FetchByIDs(ctx context.Context, ids []inventory.ID) ([]inventory.Record, error)
}

// Completion is one generated reply with its provider metadata.
type Completion struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// TextStream is a finite, non-restartable sequence of generated fragments.
// Recv returns io.EOF once the provider signals completion.
type TextStream interface {
	Recv() (string, error)
	Close() error
}

// Completer wraps a chat language model.
type Completer interface {
	Complete(ctx context.Context, instruction string, msgs []domain.Message) (Completion, error)
	Stream(ctx context.Context, instruction string, msgs []domain.Message) (TextStream, error)
}

// Sink receives the frames of a streamed answer. It has a single writer.
// Close writes the end-of-stream marker; Stream calls it exactly once.
type Sink interface {
	Text(fragment string) error
	Cars(records []inventory.Record) error
	Fail(message string) error
	Close() error
}
