// Package product is the Redis-backed catalog store: one HASH per product and a Query Engine
// index with weighted TEXT fields for lexical search.
package product

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/talk2shop/internal/db"
	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
)

// Relevance weights of the text index: title > description > category > subcategory.
const (
	weightTitle       = 5
	weightDescription = 3
	weightCategory    = 2
	weightSubcategory = 1
)

var textFields = []string{fieldTitle, fieldDescription, fieldCategory, fieldSubcategory}

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	TagValues(ctx context.Context, index, field string) ([]string, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements the catalog store over Redis.
type Repo struct {
	store  store
	prefix string
}

// New creates a catalog repository. keyPrefix namespaces every key and index, e.g. "talk2shop:".
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// EnsureSchema creates the product index if it does not exist yet.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	def, err := db.NewIndex(r.indexName()).
		Prefix(r.keyPrefix()).
		TextWeighted(fieldTitle, weightTitle).
		TextWeighted(fieldDescription, weightDescription).
		TextWeighted(fieldCategory, weightCategory).
		TagAs(fieldCategory, db.TagAlias(fieldCategory), "|", true).
		TextWeighted(fieldSubcategory, weightSubcategory).
		TagAs(fieldSubcategory, db.TagAlias(fieldSubcategory), "|", true).
		Numeric(fieldPrice).
		Numeric(fieldStock).
		NumericSortable(fieldCreatedAt).
		Tag(fieldReindexNeeded).
		Build()
	if err != nil {
		return fmt.Errorf("build product index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create product index: %w", err)
	}
	return nil
}

// FindByID returns a product or domain.ErrNotFound.
func (r *Repo) FindByID(ctx context.Context, id string) (domprod.Product, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domprod.Product{}, fmt.Errorf("hgetall %s: %w", id, err)
	}
	p, ok := parseHashFields(id, m)
	if !ok {
		return domprod.Product{}, domain.ErrNotFound
	}
	return p, nil
}

// FindByIDs fetches products in one pipelined round-trip. Missing ids are omitted.
func (r *Repo) FindByIDs(ctx context.Context, ids []string) ([]domprod.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}

	out := make([]domprod.Product, 0, len(maps))
	for i, m := range maps {
		if p, ok := parseHashFields(ids[i], m); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindPage lists products newest-first.
func (r *Repo) FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error) {
	return r.list(ctx, &db.ListQuery{
		Filters: f,
		Offset:  max(offset, 0),
		Limit:   max(limit, 1),
	})
}

// ListReindexNeeded lists products whose vector write-through gave up, newest-first.
func (r *Repo) ListReindexNeeded(ctx context.Context, offset, limit int) ([]domprod.Product, error) {
	return r.list(ctx, &db.ListQuery{
		Where:  fmt.Sprintf("@%s:{1}", fieldReindexNeeded),
		Offset: max(offset, 0),
		Limit:  max(limit, 1),
	})
}

func (r *Repo) list(ctx context.Context, q *db.ListQuery) ([]domprod.Product, error) {
	q.IndexName = r.indexName()
	q.SortBy = fieldCreatedAt
	q.Descending = true

	res, err := r.store.SearchList(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search list: %w", err)
	}

	out := make([]domprod.Product, 0, len(res.Entries))
	for _, e := range res.Entries {
		if p, ok := parseHashFields(r.idFromKey(e.Key), e.Fields); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// DistinctCategories returns the sorted set of non-empty categories.
func (r *Repo) DistinctCategories(ctx context.Context) ([]string, error) {
	vals, err := r.store.TagValues(ctx, r.indexName(), db.TagAlias(fieldCategory))
	if err != nil {
		return nil, fmt.Errorf("tag values: %w", err)
	}
	slices.Sort(vals)
	return slices.Compact(vals), nil
}

// TextSearch ranks products by weighted BM25 relevance over title, description, category
// and subcategory. A query without searchable terms yields no hits.
func (r *Repo) TextSearch(
	ctx context.Context, query string, f filter.Expression, offset, limit int,
) ([]result.Hit, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	res, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName: r.indexName(),
		Terms:     terms,
		Fields:    textFields,
		Filters:   f,
		Offset:    max(offset, 0),
		Limit:     max(limit, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}

	hits := make([]result.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		if p, ok := parseHashFields(r.idFromKey(e.Key), e.Fields); ok {
			hits = append(hits, result.New(p, e.Score))
		}
	}
	return hits, nil
}

// Create stores a new product.
func (r *Repo) Create(ctx context.Context, p domprod.Product) error {
	if err := r.store.HSet(ctx, r.key(p.ID()), buildHashFields(&p)); err != nil {
		return fmt.Errorf("hset %s: %w", p.ID(), err)
	}
	return nil
}

// Update replaces an existing product. Returns domain.ErrNotFound when absent.
func (r *Repo) Update(ctx context.Context, p domprod.Product) error {
	if err := r.mustExist(ctx, p.ID()); err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.key(p.ID()), buildHashFields(&p)); err != nil {
		return fmt.Errorf("hset %s: %w", p.ID(), err)
	}
	return nil
}

// Delete removes a product. Returns domain.ErrNotFound when absent.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.mustExist(ctx, id); err != nil {
		return err
	}
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

// SetReindexNeeded sets or clears the stale-vector marker.
func (r *Repo) SetReindexNeeded(ctx context.Context, id string, needed bool) error {
	// HSET on a missing key would resurrect a deleted product as a bare hash.
	if err := r.mustExist(ctx, id); err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.key(id), map[string]string{fieldReindexNeeded: boolFlag(needed)}); err != nil {
		return fmt.Errorf("hset %s: %w", id, err)
	}
	return nil
}

func (r *Repo) mustExist(ctx context.Context, id string) error {
	exists, err := r.store.Exists(ctx, r.key(id))
	if err != nil {
		return fmt.Errorf("check exists %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) keyPrefix() string { return r.prefix + "product:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

func (r *Repo) indexName() string { return r.prefix + "products:idx" }

func (r *Repo) idFromKey(key string) string { return strings.TrimPrefix(key, r.keyPrefix()) }
