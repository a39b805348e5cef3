package catalog

import (
	"context"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
)

// Repository is the catalog store.
type Repository interface {
	FindByID(ctx context.Context, id string) (domprod.Product, error)
	FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p domprod.Product) error
	Update(ctx context.Context, p domprod.Product) error
	Delete(ctx context.Context, id string) error
}

// Indexer mirrors catalog writes into the vector index.
type Indexer interface {
	Index(ctx context.Context, p domprod.Product) error
	Remove(ctx context.Context, id string) error
}
