package vectorindex

import (
	"context"

	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

// Backend is the storage contract of a vector engine.
//
// Describe returns domain.ErrNotFound for an absent index. Upsert and Query return
// domain.ErrIndexUnavailable when the engine cannot serve the index (missing or loading).
// Delete of an unknown id is not an error.
type Backend interface {
	Describe(ctx context.Context, name string) (vector.Info, error)
	Create(ctx context.Context, spec vector.Spec) error
	Drop(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, records []vector.Record) error
	Delete(ctx context.Context, name, id string) error
	Query(
		ctx context.Context, name string,
		embedding []float32, filters filter.Expression, topK int,
	) ([]vector.Match, error)
}
