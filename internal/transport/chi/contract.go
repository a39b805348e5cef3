package chi

import (
	"context"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
	chatuc "github.com/kailas-cloud/talk2shop/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/talk2shop/internal/usecase/health"
)

// Searcher answers search and semantic requests.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Page, error)
	Semantic(ctx context.Context, query string, f filter.Expression, topK int) ([]result.Hit, error)
}

// Catalog reads and writes products.
type Catalog interface {
	Get(ctx context.Context, id string) (domprod.Product, error)
	List(ctx context.Context, page, limit int) ([]domprod.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, id string, f domprod.Fields) (domprod.Product, error)
	Update(ctx context.Context, id string, patch domprod.Patch) (domprod.Product, error)
	Delete(ctx context.Context, id string) error
}

// Assistant answers chat questions.
type Assistant interface {
	Ask(ctx context.Context, query string) (chatuc.Answer, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
