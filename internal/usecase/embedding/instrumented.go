// Package embedding holds the embedder decorators between the retrieval pipeline
// and the provider transport.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/tracing"
)

// DefaultMaxAPIBatchSize is the largest batch sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder wraps an Embedder with dimension checks, spans and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	dims     int
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. dims > 0 enables the output width check.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, dims int, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		dims:     dims,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder and validates the vector width.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (result domain.EmbeddingResult, err error) {
	ctx, span := tracing.Start(ctx, "embedding.embed", attribute.String("embedding.model", p.model))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	result, err = p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if err = p.checkDims(result.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits texts into provider-sized chunks and delegates each.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (result domain.BatchEmbeddingResult, err error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	ctx, span := tracing.Start(ctx, "embedding.batch_embed",
		attribute.String("embedding.model", p.model), attribute.Int("embedding.batch_size", len(texts)))
	defer func() { tracing.End(span, err) }()

	start := time.Now()

	result, err = p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for _, vec := range result.Embeddings {
		if err = p.checkDims(vec); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	var allEmbeddings [][]float32
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		end := min(offset+DefaultMaxAPIBatchSize, len(texts))
		chunk := texts[offset:end]

		chunkResult, err := domain.BatchEmbed(ctx, p.inner, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(chunkResult.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: got %d embeddings for %d texts: %w",
				len(chunkResult.Embeddings), len(chunk), domain.ErrEmbeddingProviderError)
		}

		allEmbeddings = append(allEmbeddings, chunkResult.Embeddings...)
		totalPrompt += chunkResult.PromptTokens
		totalTokens += chunkResult.TotalTokens
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   allEmbeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

func (p *InstrumentedEmbedder) checkDims(vec []float32) error {
	if p.dims > 0 && len(vec) != p.dims {
		p.logger.Error("Embedding width differs from configured dimensions",
			zap.String("model", p.model), zap.Int("want", p.dims), zap.Int("got", len(vec)))
		return fmt.Errorf("embedding has %d dimensions, want %d: %w", len(vec), p.dims, domain.ErrDimensionMismatch)
	}
	return nil
}
