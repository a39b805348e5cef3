package indexing

import (
	"context"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

// VectorIndex is the write side of the vector index adapter.
type VectorIndex interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, rec vector.Record) error
	UpsertBatch(ctx context.Context, recs []vector.Record) error
	DeleteByID(ctx context.Context, id string) error
	Drop(ctx context.Context) error
}

// Marker records products whose vectors are known to be stale.
type Marker interface {
	SetReindexNeeded(ctx context.Context, id string, needed bool) error
}

// Source pages through the catalog for a reindex run.
type Source interface {
	FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error)
	ListReindexNeeded(ctx context.Context, offset, limit int) ([]domprod.Product, error)
}
