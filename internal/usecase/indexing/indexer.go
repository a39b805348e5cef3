// Package indexing keeps the vector index in step with the catalog: write-through after
// each catalog write, and an offline reindex job for everything that fell behind.
package indexing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
	"github.com/kailas-cloud/talk2shop/internal/metrics"
)

// Outcomes, the "outcome" label of metrics.IndexingTotal.
const (
	OutcomeIndexed      = "indexed"
	OutcomeMarked       = "marked"
	OutcomeRemoved      = "removed"
	OutcomeRemoveFailed = "remove_failed"
)

// Indexer writes single products through to the vector index.
type Indexer struct {
	embed  domain.Embedder
	index  VectorIndex
	marker Marker
	policy Policy
	logger *zap.Logger
}

// NewIndexer creates a write-through indexer.
func NewIndexer(embed domain.Embedder, index VectorIndex, marker Marker, policy Policy, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embed:  embed,
		index:  index,
		marker: marker,
		policy: policy.normalized(),
		logger: logger,
	}
}

// Index embeds p and upserts its vector. The call is detached from ctx cancellation so a
// finished HTTP request cannot abort it halfway. When the retries run out p is marked for
// reindexing and the error is returned.
func (ix *Indexer) Index(ctx context.Context, p domprod.Product) error {
	ctx = context.WithoutCancel(ctx)

	attempts, err := ix.policy.do(ctx, func(ctx context.Context) error {
		res, err := ix.embed.Embed(ctx, p.EmbeddingText())
		if err != nil {
			return fmt.Errorf("embed product: %w", err)
		}
		return ix.index.Upsert(ctx, Record(p, res.Embedding))
	})
	if err != nil {
		ix.markStale(ctx, p.ID(), attempts, err)
		return fmt.Errorf("index product %s: %w", p.ID(), err)
	}

	metrics.IndexingTotal.WithLabelValues(OutcomeIndexed).Inc()
	if p.ReindexNeeded() {
		ix.clearMarker(ctx, p.ID())
	}
	return nil
}

// Remove deletes the vector of a deleted product. Failures are logged and counted only:
// a vector without a catalog row is dropped at hydration time.
func (ix *Indexer) Remove(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	attempts, err := ix.policy.do(ctx, func(ctx context.Context) error {
		return ix.index.DeleteByID(ctx, id)
	})
	if err != nil {
		metrics.IndexingTotal.WithLabelValues(OutcomeRemoveFailed).Inc()
		ix.logger.Warn("Vector removal failed",
			zap.String("product_id", id), zap.Int("attempts", attempts), zap.Error(err))
		return fmt.Errorf("remove vector %s: %w", id, err)
	}

	metrics.IndexingTotal.WithLabelValues(OutcomeRemoved).Inc()
	return nil
}

func (ix *Indexer) markStale(ctx context.Context, id string, attempts int, cause error) {
	metrics.IndexingTotal.WithLabelValues(OutcomeMarked).Inc()
	ix.logger.Warn("Vector write-through failed, product marked for reindex",
		zap.String("product_id", id), zap.Int("attempts", attempts), zap.Error(cause))

	if err := ix.marker.SetReindexNeeded(ctx, id, true); err != nil && !errors.Is(err, domain.ErrNotFound) {
		ix.logger.Error("Failed to mark product for reindex", zap.String("product_id", id), zap.Error(err))
	}
}

func (ix *Indexer) clearMarker(ctx context.Context, id string) {
	if err := ix.marker.SetReindexNeeded(ctx, id, false); err != nil && !errors.Is(err, domain.ErrNotFound) {
		ix.logger.Warn("Failed to clear reindex marker", zap.String("product_id", id), zap.Error(err))
	}
}

// Record builds the vector record of a product.
func Record(p domprod.Product, embedding []float32) vector.Record {
	return vector.Record{
		ID:        p.ID(),
		Embedding: embedding,
		Metadata: vector.Metadata{
			Title:       p.Title(),
			Description: p.Description(),
			Category:    p.Category(),
			Subcategory: p.Subcategory(),
		},
	}
}
