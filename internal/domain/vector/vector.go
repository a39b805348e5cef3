// Package vector holds the value types of the similarity index.
package vector

import (
	"fmt"
	"strings"
)

// MetricCosine is the only distance metric the index is created with.
const MetricCosine = "cosine"

// Metadata duplicates catalog fields next to the vector for filtering.
type Metadata struct {
	Title       string
	Description string
	Category    string
	Subcategory string
}

// Record is one vector entry. ID equals the product id.
type Record struct {
	ID        string
	Embedding []float32
	Metadata  Metadata
}

// Match is a single similarity hit, higher score is closer.
type Match struct {
	ID    string
	Score float64
}

// Spec describes the index the adapter maintains.
type Spec struct {
	Name   string
	Dim    int
	Metric string
}

// NewSpec builds a versioned index spec: the name carries the model and dimensionality
// so that a model change lands in a fresh index instead of mixing vector widths.
func NewSpec(prefix, model string, dim int) (Spec, error) {
	if dim <= 0 {
		return Spec{}, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	prefix = Slug(prefix)
	if prefix == "" {
		return Spec{}, fmt.Errorf("index prefix is required")
	}
	slug := Slug(model)
	if slug == "" {
		return Spec{}, fmt.Errorf("embedding model is required")
	}
	return Spec{
		Name:   fmt.Sprintf("%s-%s-%d", prefix, slug, dim),
		Dim:    dim,
		Metric: MetricCosine,
	}, nil
}

// Info is what a backend reports about an existing index.
type Info struct {
	Dim   int
	Ready bool
	Count int64
}

// Slug lowercases s and collapses every run of characters outside [a-z0-9] into one dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
