// Package vector is the Redis vector index backend: one HASH per record under the index
// prefix, searched with FT.SEARCH KNN.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/talk2shop/internal/db"
	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	domvec "github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

// Record hash fields.
const (
	fieldID          = "id"
	fieldEmbedding   = "embedding"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldSubcategory = "subcategory"
)

// store is the consumer interface for the vector backend (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSW holds graph build parameters. Zero values use engine defaults.
type HNSW struct {
	M              int
	EFConstruction int
}

// Repo implements vectorindex.Backend over Redis.
type Repo struct {
	store  store
	prefix string
	hnsw   HNSW
}

// New creates a Redis vector backend. keyPrefix namespaces record keys, e.g. "talk2shop:".
func New(s store, keyPrefix string, hnsw HNSW) *Repo {
	return &Repo{store: s, prefix: keyPrefix, hnsw: hnsw}
}

// Describe reports dimensionality and readiness of an index.
func (r *Repo) Describe(ctx context.Context, name string) (domvec.Info, error) {
	info, err := r.store.IndexInfo(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domvec.Info{}, domain.ErrNotFound
		}
		return domvec.Info{}, fmt.Errorf("index info %s: %w", name, err)
	}

	attr, ok := info.Attribute(fieldEmbedding)
	if !ok {
		return domvec.Info{}, fmt.Errorf("index %s has no %s field", name, fieldEmbedding)
	}
	return domvec.Info{Dim: attr.Dim, Ready: info.Ready(), Count: info.NumDocs}, nil
}

// Create builds the HNSW cosine index. An existing index is left untouched.
func (r *Repo) Create(ctx context.Context, spec domvec.Spec) error {
	if spec.Metric != "" && spec.Metric != domvec.MetricCosine {
		return fmt.Errorf("unsupported metric %q", spec.Metric)
	}

	def, err := db.NewIndex(spec.Name).
		Prefix(r.keyPrefix(spec.Name)).
		VectorHNSW(fieldEmbedding, spec.Dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruction).
		TagAs(fieldCategory, db.TagAlias(fieldCategory), "|", true).
		TagAs(fieldSubcategory, db.TagAlias(fieldSubcategory), "|", true).
		Build()
	if err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create vector index %s: %w", spec.Name, err)
	}
	return nil
}

// Drop removes the index together with its records.
func (r *Repo) Drop(ctx context.Context, name string) error {
	if err := r.store.DropIndex(ctx, name, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop vector index %s: %w", name, err)
	}
	return nil
}

// Upsert writes records in one pipeline. Existing records are overwritten.
func (r *Repo) Upsert(ctx context.Context, name string, records []domvec.Record) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	for i := range records {
		rec := &records[i]
		items[i] = db.HashSetItem{
			Key: r.key(name, rec.ID),
			Fields: map[string]string{
				fieldID:          rec.ID,
				fieldEmbedding:   db.EncodeVector(rec.Embedding),
				fieldTitle:       rec.Metadata.Title,
				fieldDescription: rec.Metadata.Description,
				fieldCategory:    rec.Metadata.Category,
				fieldSubcategory: rec.Metadata.Subcategory,
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(items), err)
	}
	return nil
}

// Delete removes one record. Unknown ids are a no-op.
func (r *Repo) Delete(ctx context.Context, name, id string) error {
	if err := r.store.Del(ctx, r.key(name, id)); err != nil {
		return fmt.Errorf("delete vector %s: %w", id, err)
	}
	return nil
}

// Query returns the topK nearest records, closest first.
func (r *Repo) Query(
	ctx context.Context, name string,
	embedding []float32, filters filter.Expression, topK int,
) ([]domvec.Match, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    name,
		VectorField:  fieldEmbedding,
		Filters:      filters,
		Vector:       embedding,
		K:            max(topK, 1),
		ReturnFields: []string{fieldID},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("query %s: %w", name, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	out := make([]domvec.Match, 0, len(res.Entries))
	prefix := r.keyPrefix(name)
	for _, e := range res.Entries {
		id := e.Fields[fieldID]
		if id == "" && len(e.Key) > len(prefix) {
			id = e.Key[len(prefix):]
		}
		out = append(out, domvec.Match{ID: id, Score: e.Score})
	}
	return out, nil
}

func (r *Repo) keyPrefix(name string) string { return r.prefix + "vec:" + name + ":" }

func (r *Repo) key(name, id string) string { return r.keyPrefix(name) + id }
