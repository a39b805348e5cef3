package postgres

import (
	"time"

	"github.com/lib/pq"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
)

type productRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Category      string         `db:"category"`
	Subcategory   string         `db:"subcategory"`
	Price         float64        `db:"price"`
	Stock         int            `db:"stock"`
	Images        pq.StringArray `db:"images"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	ReindexNeeded bool           `db:"reindex_needed"`
}

type rankedRow struct {
	productRow
	Rank float64 `db:"rank"`
}

func (r *productRow) toDomain() domprod.Product {
	return domprod.Restore(r.ID, domprod.Fields{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Price:       r.Price,
		Stock:       r.Stock,
		Images:      []string(r.Images),
	}, r.CreatedAt.UTC(), r.UpdatedAt.UTC(), r.ReindexNeeded)
}

func toDomainSlice(rows []productRow) []domprod.Product {
	out := make([]domprod.Product, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
