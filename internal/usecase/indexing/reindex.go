package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
	"github.com/kailas-cloud/talk2shop/internal/metrics"
)

// DefaultBatchSize is the page size of a reindex run.
const DefaultBatchSize = 100

// ReindexOptions selects what a run covers.
type ReindexOptions struct {
	// OnlyMarked limits the run to products flagged by failed write-through.
	OnlyMarked bool
	// Recreate drops and recreates the index before indexing.
	Recreate   bool
	BatchSize  int
}

// ReindexReport summarizes a run.
type ReindexReport struct {
	Indexed int
	Failed  int
}

// Reindexer rebuilds vectors for the catalog in batches.
type Reindexer struct {
	source  Source
	embed   domain.Embedder
	index   VectorIndex
	indexer *Indexer
	logger  *zap.Logger
}

// NewReindexer creates a reindex job. Products that fail in a batch are retried one by one
// through indexer, which marks them when that fails too.
func NewReindexer(source Source, embed domain.Embedder, index VectorIndex, indexer *Indexer, logger *zap.Logger) *Reindexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reindexer{source: source, embed: embed, index: index, indexer: indexer, logger: logger}
}

// Run walks the catalog page by page and indexes every product it sees.
func (r *Reindexer) Run(ctx context.Context, opts ReindexOptions) (ReindexReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.Recreate {
		if err := r.index.Drop(ctx); err != nil {
			return ReindexReport{}, fmt.Errorf("drop index: %w", err)
		}
	}
	if err := r.index.EnsureIndex(ctx); err != nil {
		return ReindexReport{}, fmt.Errorf("ensure index: %w", err)
	}

	var report ReindexReport
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := r.page(ctx, opts.OnlyMarked, offset, opts.BatchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		indexed, failed := r.indexBatch(ctx, batch)
		report.Indexed += indexed
		report.Failed += failed

		r.logger.Info("Reindex batch done",
			zap.Int("offset", offset), zap.Int("indexed", indexed), zap.Int("failed", failed))

		// Marked products leave the listing once indexed, so only the failures stay ahead of the cursor.
		if opts.OnlyMarked {
			offset += failed
		} else {
			offset += len(batch)
		}
		if len(batch) < opts.BatchSize {
			break
		}
	}

	return report, nil
}

func (r *Reindexer) page(ctx context.Context, onlyMarked bool, offset, limit int) ([]domprod.Product, error) {
	var (
		batch []domprod.Product
		err   error
	)
	if onlyMarked {
		batch, err = r.source.ListReindexNeeded(ctx, offset, limit)
	} else {
		batch, err = r.source.FindPage(ctx, filter.Expression{}, offset, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog at offset %d: %w", offset, err)
	}
	return batch, nil
}

// indexBatch embeds and upserts a whole batch in one go and falls back to per-product
// indexing when the batch call fails.
func (r *Reindexer) indexBatch(ctx context.Context, batch []domprod.Product) (indexed, failed int) {
	err := r.upsertBatch(ctx, batch)
	if err == nil {
		metrics.IndexingTotal.WithLabelValues(OutcomeIndexed).Add(float64(len(batch)))
		for _, p := range batch {
			if p.ReindexNeeded() {
				r.indexer.clearMarker(ctx, p.ID())
			}
		}
		return len(batch), 0
	}

	r.logger.Warn("Batch indexing failed, indexing one by one", zap.Int("size", len(batch)), zap.Error(err))
	for _, p := range batch {
		if err := r.indexer.Index(ctx, p); err != nil {
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed
}

func (r *Reindexer) upsertBatch(ctx context.Context, batch []domprod.Product) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.EmbeddingText()
	}

	res, err := domain.BatchEmbed(ctx, r.embed, texts)
	if err != nil {
		return fmt.Errorf("batch embed: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		return fmt.Errorf("batch embed: got %d vectors for %d products", len(res.Embeddings), len(batch))
	}

	recs := make([]vector.Record, len(batch))
	for i, p := range batch {
		recs[i] = Record(p, res.Embeddings[i])
	}
	return r.index.UpsertBatch(ctx, recs)
}
