package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/metrics"
)

// DefaultEncoding is the tokenizer of the OpenAI text-embedding-3 family.
const DefaultEncoding = "cl100k_base"

// charsPerToken approximates token counts when the BPE vocabulary cannot be loaded.
const charsPerToken = 4

type tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// TruncatingEmbedder caps every input at maxTokens before it reaches the provider,
// which would otherwise reject long product descriptions.
type TruncatingEmbedder struct {
	inner     domain.Embedder
	encoding  string
	maxTokens int
	logger    *zap.Logger

	once sync.Once
	tok  tokenizer // nil after a failed load: character heuristic
}

// NewTruncatingEmbedder wraps inner. The vocabulary is loaded lazily on first use.
func NewTruncatingEmbedder(inner domain.Embedder, encoding string, maxTokens int, logger *zap.Logger) *TruncatingEmbedder {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TruncatingEmbedder{inner: inner, encoding: encoding, maxTokens: maxTokens, logger: logger}
}

// Embed truncates text and delegates.
func (t *TruncatingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := t.inner.Embed(ctx, t.truncate(text))
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed truncated: %w", err)
	}
	return res, nil
}

// BatchEmbed truncates each text and delegates in one call.
func (t *TruncatingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	cut := make([]string, len(texts))
	for i, text := range texts {
		cut[i] = t.truncate(text)
	}
	res, err := domain.BatchEmbed(ctx, t.inner, cut)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed truncated: %w", err)
	}
	return res, nil
}

func (t *TruncatingEmbedder) truncate(text string) string {
	if t.maxTokens <= 0 {
		return text
	}

	t.once.Do(t.load)

	if t.tok == nil {
		limit := t.maxTokens * charsPerToken
		runes := []rune(text)
		if len(runes) <= limit {
			return text
		}
		metrics.EmbeddingTruncatedTotal.Inc()
		return string(runes[:limit])
	}

	tokens := t.tok.Encode(text, nil, nil)
	if len(tokens) <= t.maxTokens {
		return text
	}
	metrics.EmbeddingTruncatedTotal.Inc()
	t.logger.Debug("Embedding input truncated",
		zap.Int("tokens", len(tokens)), zap.Int("max_tokens", t.maxTokens))
	return t.tok.Decode(tokens[:t.maxTokens])
}

func (t *TruncatingEmbedder) load() {
	if t.tok != nil {
		return
	}
	enc, err := tiktoken.GetEncoding(t.encoding)
	if err != nil {
		t.logger.Warn("Tokenizer unavailable, truncating by characters",
			zap.String("encoding", t.encoding), zap.Error(err))
		return
	}
	t.tok = enc
}
