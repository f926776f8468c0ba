package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/autorag/internal/db"
	"github.com/kailas-cloud/autorag/internal/domain"
)

const (
	namespaceField = "namespace"
	vectorField    = "vector"
)

// numericFields are decoded back to JSON numbers when read from hash strings.
var numericFields = map[string]bool{"Price": true, "ID": true}

// redisStore is the consumer interface for the Valkey/Redis backend (ISP).
type redisStore interface {
	db.Pinger
	db.Searcher
	db.IndexManager
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisBackend stores chunks as hashes under "<index>:<namespace>:<recordID>" and searches
// them through a single FT index "<index>:idx" prefiltered by the namespace tag.
type RedisBackend struct {
	store  redisStore
	index  string
	fields []string
}

// NewRedisBackend creates the Valkey/Redis vector backend for index.
func NewRedisBackend(s redisStore, index string) *RedisBackend {
	return &RedisBackend{store: s, index: index, fields: DefaultFields}
}

// IndexName is the FT index that covers every namespace.
func (b *RedisBackend) IndexName() string {
	return b.index + ":idx"
}

func (b *RedisBackend) keyPrefix(namespace string) string {
	return b.index + ":" + namespace + ":"
}

// Ping checks backend connectivity.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// SearchVector runs KNN over the namespace and strips key prefixes from hit ids.
func (b *RedisBackend) SearchVector(
	ctx context.Context, vector []float32, topK int, namespace string,
) ([]domain.RetrievalHit, error) {
	res, err := b.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    b.IndexName(),
		Prefilter:    db.TagFilter(namespaceField, namespace),
		Vector:       vector,
		K:            topK,
		ReturnFields: b.fields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", b.IndexName(), err)
	}

	prefix := b.keyPrefix(namespace)
	hits := make([]domain.RetrievalHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, domain.RetrievalHit{
			ID:     strings.TrimPrefix(e.Key, prefix),
			Score:  e.Score,
			Fields: decodeFields(e.Fields),
		})
	}
	return hits, nil
}

// EnsureIndex creates the FT index if it is missing.
func (b *RedisBackend) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := b.store.IndexExists(ctx, b.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", b.IndexName(), err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(b.IndexName()).
		Prefix(b.index+":").
		Tag(namespaceField).
		Text("chunk_text").
		Tag("Brand").
		Tag("Model").
		Numeric("Price").
		Vector(vectorField, dim, db.DistanceCosine, 16, 200).
		Build()
	if err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	if err := b.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Upsert writes chunks into namespace in one pipelined round-trip.
func (b *RedisBackend) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		fields := encodeFields(c.Fields)
		fields[namespaceField] = namespace
		fields[vectorField] = db.EncodeVector(c.Vector)
		items[i] = db.HashSetItem{Key: b.keyPrefix(namespace) + c.RecordID, Fields: fields}
	}

	if err := b.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// DropIndex removes the FT index so the next EnsureIndex recreates it with the
// current schema. Hashes are kept; a missing index is not an error.
func (b *RedisBackend) DropIndex(ctx context.Context) error {
	if err := b.store.DropIndex(ctx, b.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", b.IndexName(), err)
	}
	return nil
}

// Reset deletes every chunk of namespace. The index itself is kept.
func (b *RedisBackend) Reset(ctx context.Context, namespace string) error {
	keys, err := b.store.Scan(ctx, b.keyPrefix(namespace)+"*")
	if err != nil {
		return fmt.Errorf("scan %s: %w", namespace, err)
	}
	if err := b.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete %d chunks: %w", len(keys), err)
	}
	return nil
}

func decodeFields(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if numericFields[k] {
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = json.Number(v)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func encodeFields(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case int64:
			out[k] = strconv.FormatInt(t, 10)
		case int:
			out[k] = strconv.Itoa(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
