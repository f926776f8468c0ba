// Package qdrant is the Qdrant vector backend: nearest-neighbour search scoped to a namespace
// payload keyword, plus collection management and upserts for the indexer.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

const (
	namespaceKey = "namespace"
	recordIDKey  = "record_id"
)

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	CreateFieldIndex(
		ctx context.Context, in *pb.CreateFieldIndexCollection, opts ...grpc.CallOption,
	) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(
		ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption,
	) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Config holds connection parameters.
type Config struct {
	Addr       string // host:port of the gRPC endpoint
	APIKey     string
	Collection string
	TLS        bool
}

// Store is the Qdrant backend.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New dials Qdrant. The connection is lazy: no request is made until the first call.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, domain.NewConfigurationError("VECTOR_ENDPOINT")
	}

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.APIKey != "" {
		opts = append(opts,
			grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)),
		)
	}

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", cfg.Addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
	}, nil
}

// NewWithClients builds a store over pre-built clients (tests).
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Store {
	return &Store{points: points, collections: collections, collection: collection}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ping checks connectivity by listing collections.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("qdrant: ping: %w", err)
	}
	return nil
}

// SearchVector performs k-NN search filtered by the namespace payload keyword.
func (s *Store) SearchVector(
	ctx context.Context, vector []float32, topK int, namespace string,
) ([]domain.RetrievalHit, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         namespaceFilter(namespace),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		fields := make(map[string]any, len(p.GetPayload()))
		var recordID string
		for k, v := range p.GetPayload() {
			switch k {
			case namespaceKey:
			case recordIDKey:
				recordID = v.GetStringValue()
			default:
				fields[k] = fromValue(v)
			}
		}
		if recordID == "" {
			recordID = pointIDString(p.GetId())
		}
		hits = append(hits, domain.RetrievalHit{ID: recordID, Score: float64(p.GetScore()), Fields: fields})
	}
	return hits, nil
}

// EnsureIndex creates the collection and its namespace payload index if missing.
func (s *Store) EnsureIndex(ctx context.Context, dim int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dim), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}

	fieldType := pb.FieldType_FieldTypeKeyword
	wait := true
	_, err = s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: s.collection,
		Wait:           &wait,
		FieldName:      namespaceKey,
		FieldType:      &fieldType,
	})
	if err != nil {
		return fmt.Errorf("qdrant: index %s payload: %w", namespaceKey, err)
	}
	return nil
}

// DropIndex deletes the collection with every namespace in it. Qdrant reports a
// missing collection as an unsuccessful result, not an error.
func (s *Store) DropIndex(ctx context.Context) error {
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("qdrant: delete collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores chunks into namespace.
func (s *Store) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := make(map[string]*pb.Value, len(c.Fields)+2)
		for k, v := range c.Fields {
			if v == nil {
				continue
			}
			payload[k] = toValue(v)
		}
		payload[namespaceKey] = toValue(namespace)
		payload[recordIDKey] = toValue(c.RecordID)

		points[i] = &pb.PointStruct{
			Id: pointID(namespace, c.RecordID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Vector}},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(chunks), err)
	}
	return nil
}

// Reset removes every point of namespace.
func (s *Store) Reset(ctx context.Context, namespace string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: namespaceFilter(namespace)},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete namespace %s: %w", namespace, err)
	}
	return nil
}

// pointID derives a stable id per (namespace, record). Qdrant accepts only unsigned
// integers or UUIDs, and the same car may live in several namespaces.
func pointID(namespace, recordID string) *pb.PointId {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+recordID))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u.String()}}
}

func pointIDString(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return inventory.RecordKey(inventory.NumericID(int64(id.GetNum())))
}

func namespaceFilter(namespace string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{fieldMatch(namespaceKey, namespace)}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func toValue(v any) *pb.Value {
	switch tv := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

func fromValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_NullValue:
		return nil
	default:
		return v.String()
	}
}
