package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

const (
	idShoe  = "0b7f2c7e-3f4a-4d8e-9a51-2c1d3e4f5a6b"
	idBoot  = "1c8a3d8f-4a5b-4e9f-8b62-3d2e4f5a6b7c"
	idSock  = "2d9b4e90-5b6c-4fa0-9c73-4e3f5a6b7c8d"
	idStale = "3eac5fa1-6c7d-40b1-8d84-5f4a6b7c8d9e"
)

type mockCatalog struct {
	findPageFn   func(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error)
	findByIDsFn  func(ctx context.Context, ids []string) ([]domprod.Product, error)
	textSearchFn func(ctx context.Context, query string, f filter.Expression, offset, limit int) ([]result.Hit, error)
	textCalls    int
}

func (m *mockCatalog) FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error) {
	if m.findPageFn != nil {
		return m.findPageFn(ctx, f, offset, limit)
	}
	return nil, nil
}

func (m *mockCatalog) FindByIDs(ctx context.Context, ids []string) ([]domprod.Product, error) {
	if m.findByIDsFn != nil {
		return m.findByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockCatalog) TextSearch(
	ctx context.Context, query string, f filter.Expression, offset, limit int,
) ([]result.Hit, error) {
	m.textCalls++
	if m.textSearchFn != nil {
		return m.textSearchFn(ctx, query, f, offset, limit)
	}
	return nil, nil
}

type mockIndex struct {
	queryFn func(ctx context.Context, emb []float32, f filter.Expression, topK int) ([]vector.Match, error)
	calls   int
}

func (m *mockIndex) Query(ctx context.Context, emb []float32, f filter.Expression, topK int) ([]vector.Match, error) {
	m.calls++
	if m.queryFn != nil {
		return m.queryFn(ctx, emb, f, topK)
	}
	return nil, nil
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

func newTestService(c *mockCatalog, idx *mockIndex, emb *mockEmbedder) *Service {
	return New(c, idx, emb, Options{MinTopK: 5, MaxTopK: 20, SemanticTopK: 3})
}

func testProduct(t *testing.T, id, title, category string, price float64) domprod.Product {
	t.Helper()
	p, err := domprod.New(id, domprod.Fields{
		Title:    title,
		Category: category,
		Price:    price,
		Stock:    3,
	}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	return p
}

// catalogOf serves FindByIDs from a fixed set, in storage order rather than request order.
func catalogOf(products ...domprod.Product) func(context.Context, []string) ([]domprod.Product, error) {
	return func(_ context.Context, ids []string) ([]domprod.Product, error) {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		var out []domprod.Product
		for _, p := range products {
			if want[p.ID()] {
				out = append(out, p)
			}
		}
		return out, nil
	}
}

func hitIDs(hits []result.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Product().ID()
	}
	return ids
}
