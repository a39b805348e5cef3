// Package qdrant is the Qdrant vector index backend over gRPC. One collection per index
// spec; the product id is the point id and the metadata sidecar is the payload.
package qdrant

import (
	"context"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

// Payload keys.
const (
	payloadTitle       = "title"
	payloadDescription = "description"
	payloadCategory    = "category"
	payloadSubcategory = "subcategory"
)

var keywordFields = []string{payloadCategory, payloadSubcategory}

type collections interface {
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

type points interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	CreateFieldIndex(
		ctx context.Context, in *pb.CreateFieldIndexCollection, opts ...grpc.CallOption,
	) (*pb.PointsOperationResponse, error)
}

// HNSW holds graph build parameters. Zero values use engine defaults.
type HNSW struct {
	M              int
	EFConstruction int
}

// Backend implements vectorindex.Backend over Qdrant.
type Backend struct {
	collections collections
	points      points
	hnsw        HNSW
	conn        *grpc.ClientConn
}

// Dial connects to Qdrant's gRPC port.
func Dial(host string, port int, hnsw HNSW) (*Backend, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	b := New(pb.NewCollectionsClient(conn), pb.NewPointsClient(conn), hnsw)
	b.conn = conn
	return b, nil
}

// New creates a backend over existing gRPC clients.
func New(c collections, p points, hnsw HNSW) *Backend {
	return &Backend{collections: c, points: p, hnsw: hnsw}
}

// Close releases the gRPC connection opened by Dial.
func (b *Backend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

// Describe reports dimensionality and readiness of a collection.
func (b *Backend) Describe(ctx context.Context, name string) (vector.Info, error) {
	resp, err := b.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return vector.Info{}, domain.ErrNotFound
		}
		return vector.Info{}, fmt.Errorf("get collection %s: %w", name, err)
	}

	info := resp.GetResult()
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return vector.Info{}, fmt.Errorf("collection %s has no single unnamed vector", name)
	}
	return vector.Info{
		Dim:   int(params.GetSize()),
		Ready: info.GetStatus() == pb.CollectionStatus_Green || info.GetStatus() == pb.CollectionStatus_Yellow,
		Count: int64(info.GetPointsCount()),
	}, nil
}

// Create makes a cosine collection with keyword payload indexes on the filter fields.
// An existing collection is left untouched.
func (b *Backend) Create(ctx context.Context, spec vector.Spec) error {
	if spec.Metric != "" && spec.Metric != vector.MetricCosine {
		return fmt.Errorf("unsupported metric %q", spec.Metric)
	}

	req := &pb.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(spec.Dim),
			Distance: pb.Distance_Cosine,
		}}},
		HnswConfig: b.hnswConfig(),
	}
	if _, err := b.collections.Create(ctx, req); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create collection %s: %w", spec.Name, err)
	}

	wait := true
	for _, field := range keywordFields {
		_, err := b.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: spec.Name,
			Wait:           &wait,
			FieldName:      field,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil && !alreadyExists(err) {
			return fmt.Errorf("create %s payload index: %w", field, err)
		}
	}
	return nil
}

func (b *Backend) hnswConfig() *pb.HnswConfigDiff {
	if b.hnsw.M <= 0 && b.hnsw.EFConstruction <= 0 {
		return nil
	}
	cfg := &pb.HnswConfigDiff{}
	if b.hnsw.M > 0 {
		m := uint64(b.hnsw.M)
		cfg.M = &m
	}
	if b.hnsw.EFConstruction > 0 {
		ef := uint64(b.hnsw.EFConstruction)
		cfg.EfConstruct = &ef
	}
	return cfg
}

// Drop deletes a collection with its points. A missing collection is not an error.
func (b *Backend) Drop(ctx context.Context, name string) error {
	if _, err := b.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes records and waits for them to be applied.
func (b *Backend) Upsert(ctx context.Context, name string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	pts := make([]*pb.PointStruct, len(records))
	for i := range records {
		rec := &records[i]
		pts[i] = &pb.PointStruct{
			Id:      pointID(rec.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Embedding}}},
			Payload: map[string]*pb.Value{
				payloadTitle:       stringValue(rec.Metadata.Title),
				payloadDescription: stringValue(rec.Metadata.Description),
				payloadCategory:    stringValue(rec.Metadata.Category),
				payloadSubcategory: stringValue(rec.Metadata.Subcategory),
			},
		}
	}

	wait := true
	_, err := b.points.Upsert(ctx, &pb.UpsertPoints{CollectionName: name, Wait: &wait, Points: pts})
	if err != nil {
		return unavailable("upsert", name, err)
	}
	return nil
}

// Delete removes one point. Unknown ids are a no-op on the Qdrant side.
func (b *Backend) Delete(ctx context.Context, name, id string) error {
	wait := true
	_, err := b.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: name,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
		}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

// Query returns up to topK nearest points that satisfy the exact-match filters.
func (b *Backend) Query(
	ctx context.Context, name string, embedding []float32, filters filter.Expression, topK int,
) ([]vector.Match, error) {
	if !filters.MatchOnly() {
		return nil, fmt.Errorf("qdrant backend supports match filters only")
	}

	resp, err := b.points.Search(ctx, &pb.SearchPoints{
		CollectionName: name,
		Vector:         embedding,
		Filter:         buildFilter(filters),
		Limit:          uint64(max(topK, 1)),
	})
	if err != nil {
		return nil, unavailable("search", name, err)
	}

	out := make([]vector.Match, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		id := p.GetId().GetUuid()
		if id == "" {
			continue
		}
		out = append(out, vector.Match{ID: id, Score: float64(p.GetScore())})
	}
	return out, nil
}

func buildFilter(f filter.Expression) *pb.Filter {
	if f.IsEmpty() {
		return nil
	}
	must := make([]*pb.Condition, 0, len(f.Must()))
	for _, c := range f.Must() {
		must = append(must, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   c.Key(),
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: c.Match()}},
		}}})
	}
	return &pb.Filter{Must: must}
}

func pointID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// unavailable maps a missing or unreachable collection onto domain.ErrIndexUnavailable.
func unavailable(op, name string, err error) error {
	switch status.Code(err) {
	case codes.NotFound, codes.Unavailable:
		return fmt.Errorf("%s %s: %w: %w", op, name, domain.ErrIndexUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}

func alreadyExists(err error) bool {
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(status.Convert(err).Message()), "already exists")
}
