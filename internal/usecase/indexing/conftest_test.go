package indexing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

const (
	testID  = "0b7f2c7e-3f4a-4d8e-9a51-2c1d3e4f5a6b"
	otherID = "1c8a3d8f-4a5b-4e9f-8b62-3d2e4f5a6b7c"
)

type mockEmbedder struct {
	embedFn    func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	batchFn    func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	embedCalls int
	batchCalls int
	lastText   string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	m.lastText = text
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.batchFn != nil {
		return m.batchFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type mockIndex struct {
	ensureFn      func(ctx context.Context) error
	upsertFn      func(ctx context.Context, rec vector.Record) error
	upsertBatchFn func(ctx context.Context, recs []vector.Record) error
	deleteFn      func(ctx context.Context, id string) error
	dropFn        func(ctx context.Context) error

	upserts    []vector.Record
	batches    int
	dropCalls  int
	deleteHits int
}

func (m *mockIndex) EnsureIndex(ctx context.Context) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx)
	}
	return nil
}

func (m *mockIndex) Upsert(ctx context.Context, rec vector.Record) error {
	m.upserts = append(m.upserts, rec)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, rec)
	}
	return nil
}

func (m *mockIndex) UpsertBatch(ctx context.Context, recs []vector.Record) error {
	m.batches++
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, recs)
	}
	m.upserts = append(m.upserts, recs...)
	return nil
}

func (m *mockIndex) DeleteByID(ctx context.Context, id string) error {
	m.deleteHits++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIndex) Drop(ctx context.Context) error {
	m.dropCalls++
	if m.dropFn != nil {
		return m.dropFn(ctx)
	}
	return nil
}

// mockMarker records the reindex markers by product id.
type mockMarker struct {
	mu    sync.Mutex
	marks map[string]bool
	err   error
}

func (m *mockMarker) SetReindexNeeded(_ context.Context, id string, needed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.marks == nil {
		m.marks = make(map[string]bool)
	}
	m.marks[id] = needed
	return nil
}

func (m *mockMarker) mark(id string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.marks[id]
	return v, ok
}

type mockSource struct {
	products []domprod.Product
	marked   func() []domprod.Product
	pageErr  error
}

func (m *mockSource) FindPage(_ context.Context, _ filter.Expression, offset, limit int) ([]domprod.Product, error) {
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	return window(m.products, offset, limit), nil
}

func (m *mockSource) ListReindexNeeded(_ context.Context, offset, limit int) ([]domprod.Product, error) {
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	return window(m.marked(), offset, limit), nil
}

func window(ps []domprod.Product, offset, limit int) []domprod.Product {
	if offset >= len(ps) {
		return nil
	}
	return ps[offset:min(offset+limit, len(ps))]
}

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func testProduct(t *testing.T, id string) domprod.Product {
	t.Helper()
	p, err := domprod.New(id, domprod.Fields{
		Title:       "Trail Shoe",
		Description: "Light and grippy",
		Category:    "Footwear",
		Subcategory: "Running",
		Price:       89.5,
		Stock:       4,
	}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	return p
}
