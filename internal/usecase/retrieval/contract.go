package retrieval

import (
	"context"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

// Catalog is the read side of the catalog store used by search.
type Catalog interface {
	FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]domprod.Product, error)
	TextSearch(ctx context.Context, query string, f filter.Expression, offset, limit int) ([]result.Hit, error)
}

// VectorIndex answers similarity queries.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, f filter.Expression, topK int) ([]vector.Match, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
