package product

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/talk2shop/internal/db"
	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
)

// --- EnsureSchema ---

func TestEnsureSchema_Definition(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "talk2shop:products:idx" {
		t.Errorf("index name = %q", got.Name)
	}
	if len(got.Prefixes) != 1 || got.Prefixes[0] != "talk2shop:product:" {
		t.Errorf("prefixes = %v", got.Prefixes)
	}

	weights := map[string]float64{}
	var sortable, categoryTag bool
	for _, f := range got.Fields {
		if f.Type == db.IndexFieldText {
			weights[f.Name] = f.TextWeight
		}
		if f.Name == fieldCreatedAt && f.Sortable {
			sortable = true
		}
		if f.Type == db.IndexFieldTag && f.Alias == "category_tag" {
			categoryTag = true
		}
	}
	want := map[string]float64{"title": 5, "description": 3, "category": 2, "subcategory": 1}
	if !reflect.DeepEqual(weights, want) {
		t.Errorf("text weights = %v, want %v", weights, want)
	}
	if !sortable {
		t.Error("created_at must be sortable")
	}
	if !categoryTag {
		t.Error("expected category_tag alias")
	}
}

func TestEnsureSchema_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("existing index should be ok, got %v", err)
	}
}

func TestEnsureSchema_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return errors.New("connection refused")
	}
	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- Create / FindByID ---

func TestCreate_WritesHash(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct(t, testID)

	var stored map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != productKey(testID) {
			t.Errorf("unexpected key: %s", key)
		}
		stored = fields
		return nil
	}

	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored[fieldPrice] != "89.5" {
		t.Errorf("price = %q", stored[fieldPrice])
	}
	if stored[fieldImages] != `["https://cdn.example.com/shoe.jpg"]` {
		t.Errorf("images = %q", stored[fieldImages])
	}
	if stored[fieldReindexNeeded] != "0" {
		t.Errorf("reindex_needed = %q", stored[fieldReindexNeeded])
	}
	if stored[fieldCreatedAt] != "1772359200000" {
		t.Errorf("created_at = %q", stored[fieldCreatedAt])
	}
}

func TestFindByID_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct(t, testID)
	hash := buildHashFields(&p)

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) { return hash, nil }

	got, err := repo.FindByID(context.Background(), testID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID() != testID || got.Title() != p.Title() || got.Price() != p.Price() || got.Stock() != p.Stock() {
		t.Errorf("round trip mismatch: %+v", got.Fields())
	}
	if !got.CreatedAt().Equal(p.CreatedAt()) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt(), p.CreatedAt())
	}
	if !reflect.DeepEqual(got.Images(), p.Images()) {
		t.Errorf("images = %v", got.Images())
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.FindByID(context.Background(), testID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- FindByIDs ---

func TestFindByIDs_SkipsMissing(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct(t, otherID)

	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 2 || keys[1] != productKey(otherID) {
			t.Errorf("unexpected keys: %v", keys)
		}
		return []map[string]string{{}, buildHashFields(&p)}, nil
	}

	got, err := repo.FindByIDs(context.Background(), []string{testID, otherID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != otherID {
		t.Fatalf("expected only %s, got %d products", otherID, len(got))
	}
}

func TestFindByIDs_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		t.Fatal("store must not be called for empty ids")
		return nil, nil
	}
	got, err := repo.FindByIDs(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

// --- FindPage / ListReindexNeeded ---

func TestFindPage_NewestFirst(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct(t, testID)
	f := filter.ByCategory("Footwear", "")

	ms.searchListFn = func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
		if q.IndexName != "talk2shop:products:idx" {
			t.Errorf("index = %q", q.IndexName)
		}
		if q.SortBy != fieldCreatedAt || !q.Descending {
			t.Errorf("sort = %s desc=%v", q.SortBy, q.Descending)
		}
		if q.Offset != 20 || q.Limit != 10 {
			t.Errorf("window = %d/%d", q.Offset, q.Limit)
		}
		if v, ok := q.Filters.MatchValue(filter.KeyCategory); !ok || v != "Footwear" {
			t.Errorf("filter not forwarded: %v", q.Filters.Must())
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: productKey(testID), Fields: buildHashFields(&p)},
		}}, nil
	}

	got, err := repo.FindPage(context.Background(), f, 20, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != testID {
		t.Fatalf("unexpected page: %d items", len(got))
	}
}

func TestListReindexNeeded_Predicate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchListFn = func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
		if q.Where != "@reindex_needed:{1}" {
			t.Errorf("where = %q", q.Where)
		}
		return &db.SearchResult{}, nil
	}
	if _, err := repo.ListReindexNeeded(context.Background(), 0, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- TextSearch ---

func TestTextSearch_Scored(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct(t, testID)

	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if !reflect.DeepEqual(q.Terms, []string{"trail", "shoe"}) {
			t.Errorf("terms = %v", q.Terms)
		}
		if !reflect.DeepEqual(q.Fields, textFields) {
			t.Errorf("fields = %v", q.Fields)
		}
		return &db.SearchResult{Entries: []db.SearchEntry{
			{Key: productKey(testID), Score: 4.2, Fields: buildHashFields(&p)},
		}}, nil
	}

	hits, err := repo.TextSearch(context.Background(), "Trail shoe, SHOE!", filter.Expression{}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if s := hits[0].Score(); s == nil || *s != 4.2 {
		t.Errorf("score = %v", s)
	}
	if hits[0].Product().ID() != testID {
		t.Errorf("id = %s", hits[0].Product().ID())
	}
}

func TestTextSearch_NoTerms(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be called without terms")
		return nil, nil
	}
	hits, err := repo.TextSearch(context.Background(), " ?! ", filter.Expression{}, 0, 10)
	if err != nil || len(hits) != 0 {
		t.Fatalf("got %v, %v", hits, err)
	}
}

func TestTextSearch_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return nil, errors.New("timeout")
	}
	if _, err := repo.TextSearch(context.Background(), "shoe", filter.Expression{}, 0, 10); err == nil {
		t.Fatal("expected error")
	}
}

// --- DistinctCategories ---

func TestDistinctCategories_Sorted(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.tagValuesFn = func(_ context.Context, index, field string) ([]string, error) {
		if field != "category_tag" {
			t.Errorf("field = %q", field)
		}
		return []string{"Toys", "Footwear", "Books", "Footwear"}, nil
	}
	got, err := repo.DistinctCategories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Books", "Footwear", "Toys"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// --- Update / Delete / SetReindexNeeded ---

func TestUpdate_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error {
		t.Fatal("must not write a missing product")
		return nil
	}
	err := repo.Update(context.Background(), testProduct(t, testID))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	var deleted string
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}
	if err := repo.Delete(context.Background(), testID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != productKey(testID) {
		t.Errorf("deleted %q", deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Delete(context.Background(), testID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetReindexNeeded(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	var fields map[string]string
	ms.hsetFn = func(_ context.Context, _ string, f map[string]string) error {
		fields = f
		return nil
	}
	if err := repo.SetReindexNeeded(context.Background(), testID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 1 || fields[fieldReindexNeeded] != "1" {
		t.Errorf("fields = %v", fields)
	}
}

func TestSetReindexNeeded_ExistsError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return false, errors.New("down") }
	err := repo.SetReindexNeeded(context.Background(), testID, false)
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
