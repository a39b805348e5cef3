package request

import (
	"strings"

	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength caps the query in bytes; longer input is cut, not rejected.
	MaxQueryLength = 1024
	DefaultLimit   = 10
	MaxLimit       = 100
	// MaxPage keeps page*limit well inside int range.
	MaxPage        = 1_000_000
)

// Limits overrides the package defaults from configuration.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

// Request is a normalized search request.
type Request struct {
	query   string
	filters filter.Expression
	page    int
	limit   int
}

// New normalizes search parameters. Nothing is rejected: page and limit are clamped to
// at least 1, both are capped, and a blank query turns the request into a listing.
func New(query string, filters filter.Expression, page, limit int, lim Limits) Request {
	if lim.DefaultLimit <= 0 {
		lim.DefaultLimit = DefaultLimit
	}
	if lim.MaxLimit <= 0 {
		lim.MaxLimit = MaxLimit
	}

	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		query = strings.ToValidUTF8(query[:MaxQueryLength], "")
	}
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = lim.DefaultLimit
	}
	if limit > lim.MaxLimit {
		limit = lim.MaxLimit
	}

	return Request{query: query, filters: filters, page: page, limit: limit}
}

// Query returns the trimmed query text.
func (r Request) Query() string { return r.query }

// Filters returns the category filter.
func (r Request) Filters() filter.Expression { return r.filters }

// Page returns the 1-based page number.
func (r Request) Page() int { return r.page }

// Limit returns the page size.
func (r Request) Limit() int { return r.limit }

// Offset returns the number of ranked results skipped before this page.
func (r Request) Offset() int { return (r.page - 1) * r.limit }

// End returns the rank just past the last result of this page.
func (r Request) End() int { return r.page * r.limit }

// IsListing reports whether the request is a browse without a query.
func (r Request) IsListing() bool { return r.query == "" }
