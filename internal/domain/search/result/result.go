package result

import "github.com/kailas-cloud/talk2shop/internal/domain/product"

// Source names the path that produced a page of results.
type Source string

// Result sources.
const (
	SourceListing Source = "listing"
	SourceVector  Source = "vector"
	SourceText    Source = "text"
)

// Hit is a single search result: a hydrated product and an optional relevance score.
type Hit struct {
	product product.Product
	score   *float64
}

// New creates a scored hit.
func New(p product.Product, score float64) Hit {
	return Hit{product: p, score: &score}
}

// Unscored creates a hit without a score (listings).
func Unscored(p product.Product) Hit {
	return Hit{product: p}
}

// Product returns the hydrated product.
func (h Hit) Product() product.Product { return h.product }

// Score returns the relevance score, or nil when the hit is not ranked.
func (h Hit) Score() *float64 {
	if h.score == nil {
		return nil
	}
	s := *h.score
	return &s
}

// Page is one page of search results.
type Page struct {
	Hits   []Hit
	Page   int
	Limit  int
	Source Source
}
