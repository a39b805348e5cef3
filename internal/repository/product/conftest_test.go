package product

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/talk2shop/internal/db"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	tagValuesFn    func(ctx context.Context, index, field string) ([]string, error)
	searchListFn   func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	searchTextFn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) TagValues(ctx context.Context, index, field string) ([]string, error) {
	if m.tagValuesFn != nil {
		return m.tagValuesFn(ctx, index, field)
	}
	return nil, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

const (
	testPrefix = "talk2shop:"
	testID     = "0b7f2c7e-3f4a-4d8e-9a51-2c1d3e4f5a6b"
	otherID    = "5e0c1a2b-7d8e-4f90-a1b2-c3d4e5f60718"
)

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testPrefix), ms
}

func testProduct(t *testing.T, id string) domprod.Product {
	t.Helper()
	p, err := domprod.New(id, domprod.Fields{
		Title:       "Trail Running Shoe",
		Description: "Lightweight shoe with a grippy outsole",
		Category:    "Footwear",
		Subcategory: "Running",
		Price:       89.5,
		Stock:       12,
		Images:      []string{"https://cdn.example.com/shoe.jpg"},
	}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new product: %v", err)
	}
	return p
}

func productKey(id string) string { return testPrefix + "product:" + id }
