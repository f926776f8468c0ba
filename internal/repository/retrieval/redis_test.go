package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/autorag/internal/db"
	"github.com/kailas-cloud/autorag/internal/domain"
)

func TestRedisBackend_SearchVector(t *testing.T) {
	var got *db.KNNQuery
	ms := &mockStore{searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
			Key:   "automotive:ns1:car_7",
			Score: 0.83,
			Fields: map[string]string{
				"chunk_text": "2018 Honda City",
				"Brand":      "Honda",
				"Price":      "550000",
				"ID":         "7",
			},
		}}}, nil
	}}
	b := NewRedisBackend(ms, "automotive")

	hits, err := b.SearchVector(context.Background(), []float32{0.1}, 8, "ns1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IndexName != "automotive:idx" || got.Prefilter != "@namespace:{ns1}" || got.K != 8 {
		t.Errorf("query = %+v", got)
	}
	if !slices.Equal(got.ReturnFields, DefaultFields) {
		t.Errorf("return fields = %v", got.ReturnFields)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	h := hits[0]
	if h.ID != "car_7" || h.Score != 0.83 {
		t.Errorf("hit = %+v", h)
	}
	if h.Fields["Price"] != json.Number("550000") {
		t.Errorf("Price = %#v, want json.Number", h.Fields["Price"])
	}
	if h.Fields["Brand"] != "Honda" {
		t.Errorf("Brand = %#v", h.Fields["Brand"])
	}
}

func TestRedisBackend_SearchVectorError(t *testing.T) {
	ms := &mockStore{searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}}
	_, err := NewRedisBackend(ms, "automotive").SearchVector(context.Background(), []float32{1}, 1, "ns1")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestRedisBackend_EnsureIndex(t *testing.T) {
	var def *db.IndexDefinition
	ms := &mockStore{createIndexFn: func(_ context.Context, d *db.IndexDefinition) error {
		def = d
		return db.ErrIndexExists
	}}

	if err := NewRedisBackend(ms, "automotive").EnsureIndex(context.Background(), 1536); err != nil {
		t.Fatalf("existing index must not fail: %v", err)
	}
	if def.Name != "automotive:idx" || !slices.Equal(def.Prefixes, []string{"automotive:"}) {
		t.Errorf("definition = %+v", def)
	}
	last := def.Fields[len(def.Fields)-1]
	if last.Type != db.IndexFieldVector || last.VectorDim != 1536 {
		t.Errorf("vector field = %+v", last)
	}
}

var errConnRefused = errors.New("dial tcp: connection refused")

func TestRedisBackend_EnsureIndex_Existing(t *testing.T) {
	var checked string
	created := false
	ms := &mockStore{
		indexExistsFn: func(_ context.Context, name string) (bool, error) {
			checked = name
			return true, nil
		},
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			created = true
			return nil
		},
	}

	if err := NewRedisBackend(ms, "automotive").EnsureIndex(context.Background(), 1536); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checked != "automotive:idx" {
		t.Errorf("checked index = %q", checked)
	}
	if created {
		t.Error("must not create an index that already exists")
	}
}

func TestRedisBackend_EnsureIndex_CheckFails(t *testing.T) {
	ms := &mockStore{indexExistsFn: func(context.Context, string) (bool, error) {
		return false, errConnRefused
	}}
	err := NewRedisBackend(ms, "automotive").EnsureIndex(context.Background(), 1536)
	if !errors.Is(err, errConnRefused) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestRedisBackend_DropIndex(t *testing.T) {
	tests := []struct {
		name    string
		dropErr error
		wantErr bool
	}{
		{"dropped", nil, false},
		{"already gone", db.ErrIndexNotFound, false},
		{"connection", errConnRefused, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dropped string
			ms := &mockStore{dropIndexFn: func(_ context.Context, name string) error {
				dropped = name
				return tt.dropErr
			}}

			err := NewRedisBackend(ms, "automotive").DropIndex(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if dropped != "automotive:idx" {
				t.Errorf("dropped = %q", dropped)
			}
		})
	}
}

func TestRedisBackend_Upsert(t *testing.T) {
	var items []db.HashSetItem
	ms := &mockStore{hsetMultiFn: func(_ context.Context, in []db.HashSetItem) error {
		items = in
		return nil
	}}

	err := NewRedisBackend(ms, "automotive").Upsert(context.Background(), "ns1", []domain.Chunk{{
		RecordID: "car_7",
		Fields:   map[string]any{"Brand": "Honda", "Price": 550000.0, "ID": "7", "Seats": nil},
		Vector:   []float32{1, 2},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Key != "automotive:ns1:car_7" {
		t.Fatalf("items = %+v", items)
	}
	f := items[0].Fields
	if f["namespace"] != "ns1" || f["Price"] != "550000" || f["Brand"] != "Honda" {
		t.Errorf("fields = %v", f)
	}
	if _, ok := f["Seats"]; ok {
		t.Error("nil fields must be skipped")
	}
	if f["vector"] != db.EncodeVector([]float32{1, 2}) {
		t.Error("vector not packed")
	}
}

func TestRedisBackend_Reset(t *testing.T) {
	var pattern string
	var deleted []string
	ms := &mockStore{
		scanFn: func(_ context.Context, p string) ([]string, error) {
			pattern = p
			return []string{"automotive:ns1:car_1"}, nil
		},
		delFn: func(_ context.Context, keys ...string) error {
			deleted = keys
			return nil
		},
	}

	if err := NewRedisBackend(ms, "automotive").Reset(context.Background(), "ns1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pattern != "automotive:ns1:*" || len(deleted) != 1 {
		t.Errorf("pattern=%q deleted=%v", pattern, deleted)
	}
}
