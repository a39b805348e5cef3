// Package postgres is the Postgres-backed catalog store. Lexical relevance comes from a
// generated, weighted tsvector column.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
)

const productColumns = `id, title, description, category, subcategory, price, stock, images,
	created_at, updated_at, reindex_needed`

// querier is the consumer interface over *sqlx.DB (ISP).
type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Options configures the connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens and pings a pooled Postgres connection.
func Connect(ctx context.Context, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return db, nil
}

// Repo implements the catalog store over Postgres.
type Repo struct {
	db querier
}

// New creates a Postgres catalog repository.
func New(q querier) *Repo {
	return &Repo{db: q}
}

// EnsureSchema creates the products table and indexes.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// FindByID returns a product or domain.ErrNotFound.
func (r *Repo) FindByID(ctx context.Context, id string) (domprod.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domprod.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domprod.Product{}, fmt.Errorf("select product %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// FindByIDs fetches products in one query. Missing ids are omitted.
func (r *Repo) FindByIDs(ctx context.Context, ids []string) ([]domprod.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []productRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}
	return toDomainSlice(rows), nil
}

// FindPage lists products newest-first.
func (r *Repo) FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error) {
	where, args := buildWhere(f, 1)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, max(offset, 0), max(limit, 1))

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select product page: %w", err)
	}
	return toDomainSlice(rows), nil
}

// ListReindexNeeded lists products whose vector write-through gave up, newest-first.
func (r *Repo) ListReindexNeeded(ctx context.Context, offset, limit int) ([]domprod.Product, error) {
	var rows []productRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+productColumns+` FROM products WHERE reindex_needed
		ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`, max(offset, 0), max(limit, 1))
	if err != nil {
		return nil, fmt.Errorf("select reindex-needed products: %w", err)
	}
	return toDomainSlice(rows), nil
}

// DistinctCategories returns the sorted set of non-empty categories.
func (r *Repo) DistinctCategories(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.SelectContext(ctx, &out,
		`SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	return out, nil
}

// TextSearch ranks products by weighted ts_rank. Any query word may match.
func (r *Repo) TextSearch(
	ctx context.Context, query string, f filter.Expression, offset, limit int,
) ([]result.Hit, error) {
	tsq := websearchOr(query)
	if tsq == "" {
		return nil, nil
	}

	where, args := buildWhere(f, 2)
	cond := `search_vector @@ q`
	if where != "" {
		cond = strings.TrimPrefix(where, " WHERE ") + ` AND ` + cond
	}

	stmt := `SELECT ` + productColumns + `, ts_rank(` + rankWeights + `, search_vector, q) AS rank
		FROM products, websearch_to_tsquery('english', $1) AS q
		WHERE ` + cond +
		fmt.Sprintf(` ORDER BY rank DESC, created_at DESC OFFSET $%d LIMIT $%d`, len(args)+2, len(args)+3)

	params := make([]any, 0, len(args)+3)
	params = append(params, tsq)
	params = append(params, args...)
	params = append(params, max(offset, 0), max(limit, 1))

	var rows []rankedRow
	if err := r.db.SelectContext(ctx, &rows, stmt, params...); err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	hits := make([]result.Hit, 0, len(rows))
	for i := range rows {
		hits = append(hits, result.New(rows[i].toDomain(), rows[i].Rank))
	}
	return hits, nil
}

// Create inserts a product, replacing a previous row with the same id.
func (r *Repo) Create(ctx context.Context, p domprod.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			category = EXCLUDED.category, subcategory = EXCLUDED.subcategory,
			price = EXCLUDED.price, stock = EXCLUDED.stock, images = EXCLUDED.images,
			updated_at = EXCLUDED.updated_at, reindex_needed = EXCLUDED.reindex_needed`,
		p.ID(), p.Title(), p.Description(), p.Category(), p.Subcategory(), p.Price(), p.Stock(),
		pq.Array(nonNil(p.Images())), p.CreatedAt(), p.UpdatedAt(), p.ReindexNeeded(),
	)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID(), err)
	}
	return nil
}

// Update replaces an existing product. Returns domain.ErrNotFound when absent.
func (r *Repo) Update(ctx context.Context, p domprod.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET title = $1, description = $2, category = $3, subcategory = $4,
			price = $5, stock = $6, images = $7, updated_at = $8, reindex_needed = $9
		WHERE id = $10`,
		p.Title(), p.Description(), p.Category(), p.Subcategory(), p.Price(), p.Stock(),
		pq.Array(nonNil(p.Images())), p.UpdatedAt(), p.ReindexNeeded(), p.ID(),
	)
	return affected(res, err, "update product "+p.ID())
}

// Delete removes a product. Returns domain.ErrNotFound when absent.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return affected(res, err, "delete product "+id)
}

// SetReindexNeeded sets or clears the stale-vector marker.
func (r *Repo) SetReindexNeeded(ctx context.Context, id string, needed bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET reindex_needed = $1 WHERE id = $2`, needed, id)
	return affected(res, err, "mark product "+id)
}

func affected(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// buildWhere renders filter conditions as a WHERE clause with placeholders numbered from first.
// Condition keys are restricted to known columns by the filter package.
func buildWhere(f filter.Expression, first int) (string, []any) {
	if f.IsEmpty() {
		return "", nil
	}

	var (
		parts []string
		args  []any
	)
	next := func(op string, v any) {
		args = append(args, v)
		parts = append(parts, op+" $"+strconv.Itoa(first+len(args)-1))
	}

	for _, c := range f.Must() {
		col := pq.QuoteIdentifier(c.Key())
		if c.IsMatch() {
			next(col+" =", c.Match())
			continue
		}
		rng := c.Range()
		if v := rng.GT(); v != nil {
			next(col+" >", *v)
		}
		if v := rng.GTE(); v != nil {
			next(col+" >=", *v)
		}
		if v := rng.LT(); v != nil {
			next(col+" <", *v)
		}
		if v := rng.LTE(); v != nil {
			next(col+" <=", *v)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// websearchOr turns free text into a websearch_to_tsquery input where any word may match.
func websearchOr(query string) string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " or ")
}
