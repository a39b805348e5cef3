package db

import "github.com/kailas-cloud/talk2shop/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for weighted full-text search.
// Terms are OR-ed across Fields; per-field weights come from the index schema.
type TextQuery struct {
	IndexName    string
	Terms        []string
	Fields       []string
	Filters      filter.Expression
	Offset       int
	Limit        int
	ReturnFields []string
}

// ListQuery is the input for a filtered, sorted listing without relevance.
type ListQuery struct {
	IndexName    string
	Filters      filter.Expression
	Where        string // raw predicate AND-ed with Filters
	SortBy       string
	Descending   bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
