package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
	chatuc "github.com/kailas-cloud/talk2shop/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/talk2shop/internal/usecase/health"
)

const (
	testKey = "secret"
	testID  = "0b5e3c1e-8f4a-4c1d-9a51-3f7e2d8c6b10"
)

// --- mocks ---

type mockSearcher struct {
	searchFn   func(ctx context.Context, req request.Request) (result.Page, error)
	semanticFn func(ctx context.Context, query string, f filter.Expression, topK int) ([]result.Hit, error)
}

func (m *mockSearcher) Search(ctx context.Context, req request.Request) (result.Page, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return result.Page{Page: req.Page(), Limit: req.Limit(), Source: result.SourceListing}, nil
}

func (m *mockSearcher) Semantic(
	ctx context.Context, query string, f filter.Expression, topK int,
) ([]result.Hit, error) {
	if m.semanticFn != nil {
		return m.semanticFn(ctx, query, f, topK)
	}
	return nil, nil
}

type mockCatalog struct {
	getFn        func(ctx context.Context, id string) (domprod.Product, error)
	listFn       func(ctx context.Context, page, limit int) ([]domprod.Product, error)
	categoriesFn func(ctx context.Context) ([]string, error)
	createFn     func(ctx context.Context, id string, f domprod.Fields) (domprod.Product, error)
	updateFn     func(ctx context.Context, id string, patch domprod.Patch) (domprod.Product, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (m *mockCatalog) Get(ctx context.Context, id string) (domprod.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domprod.Product{}, nil
}

func (m *mockCatalog) List(ctx context.Context, page, limit int) ([]domprod.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx, page, limit)
	}
	return nil, nil
}

func (m *mockCatalog) Categories(ctx context.Context) ([]string, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) Create(ctx context.Context, id string, f domprod.Fields) (domprod.Product, error) {
	if m.createFn != nil {
		return m.createFn(ctx, id, f)
	}
	return domprod.New(id, f, time.Now())
}

func (m *mockCatalog) Update(ctx context.Context, id string, patch domprod.Patch) (domprod.Product, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return domprod.Product{}, nil
}

func (m *mockCatalog) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockAssistant struct {
	askFn func(ctx context.Context, query string) (chatuc.Answer, error)
}

func (m *mockAssistant) Ask(ctx context.Context, query string) (chatuc.Answer, error) {
	return m.askFn(ctx, query)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- helpers ---

type testDeps struct {
	search  *mockSearcher
	catalog *mockCatalog
	chat    Assistant
	health  *mockHealth
}

func newTestDeps() *testDeps {
	return &testDeps{
		search:  &mockSearcher{},
		catalog: &mockCatalog{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentCatalog: healthuc.CheckOK},
		}},
	}
}

func (d *testDeps) handler() http.Handler {
	s := NewServer(d.search, d.catalog, d.chat, d.health)
	return s.Handler(RouterOptions{APIKeys: []string{testKey}})
}

func do(t *testing.T, h http.Handler, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func testProduct(t *testing.T, id, title string) domprod.Product {
	t.Helper()
	p, err := domprod.New(id, domprod.Fields{
		Title:    title,
		Category: "Shoes",
		Price:    59.9,
		Stock:    3,
		Images:   []string{"https://cdn.example.com/1.jpg"},
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	return p
}
