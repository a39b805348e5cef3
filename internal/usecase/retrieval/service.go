// Package retrieval answers catalog searches: semantic retrieval first, lexical search
// whenever the semantic path cannot produce an answer.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
	"github.com/kailas-cloud/talk2shop/internal/logger"
	"github.com/kailas-cloud/talk2shop/internal/metrics"
	"github.com/kailas-cloud/talk2shop/internal/tracing"
)

// Fallback reasons, also the "reason" label of metrics.RetrievalTotal.
const (
	ReasonEmbedError   = "embed_error"
	ReasonVectorError  = "vector_error"
	ReasonEmpty        = "empty"
	ReasonHydrateError = "hydrate_error"
)

// Upstream stages, the "stage" label of metrics.UpstreamDuration.
const (
	stageEmbed   = "embed"
	stageVector  = "vector"
	stageHydrate = "hydrate"
	stageText    = "text"
	stageListing = "listing"
)

// Options tunes candidate pool sizes and upstream deadlines. Zero durations mean no deadline.
type Options struct {
	MinTopK        int
	MaxTopK        int
	SemanticTopK   int
	EmbedTimeout   time.Duration
	VectorTimeout  time.Duration
	CatalogTimeout time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MinTopK:        50,
		MaxTopK:        500,
		SemanticTopK:   10,
		EmbedTimeout:   2 * time.Second,
		VectorTimeout:  time.Second,
		CatalogTimeout: 2 * time.Second,
	}
}

// Service orchestrates embed → vector query → hydrate, with a text fallback.
type Service struct {
	catalog Catalog
	index   VectorIndex
	embed   Embedder
	opts    Options
}

// New creates a retrieval service.
func New(catalog Catalog, index VectorIndex, embed Embedder, opts Options) *Service {
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultOptions().MaxTopK
	}
	if opts.MinTopK <= 0 {
		opts.MinTopK = 1
	}
	if opts.SemanticTopK <= 0 {
		opts.SemanticTopK = DefaultOptions().SemanticTopK
	}
	return &Service{catalog: catalog, index: index, embed: embed, opts: opts}
}

// Search answers one page. Listing for a blank query, vector retrieval otherwise, with
// text search covering every vector-path failure. Only a failing listing or text
// fallback surfaces as an error.
func (s *Service) Search(ctx context.Context, req request.Request) (page result.Page, err error) {
	ctx, span := tracing.Start(ctx, "retrieval.search",
		attribute.Int("search.page", req.Page()), attribute.Int("search.limit", req.Limit()))
	defer func() {
		span.SetAttributes(attribute.String("search.source", string(page.Source)))
		tracing.End(span, err)
	}()

	page = result.Page{Page: req.Page(), Limit: req.Limit()}

	if req.IsListing() {
		hits, err := s.listing(ctx, req)
		if err != nil {
			return result.Page{}, err
		}
		page.Hits, page.Source = hits, result.SourceListing
		metrics.RetrievalTotal.WithLabelValues(string(result.SourceListing), "").Inc()
		return page, nil
	}

	hits, reason, cause := s.vectorPath(ctx, req)
	if reason == "" {
		page.Hits, page.Source = hits, result.SourceVector
		metrics.RetrievalTotal.WithLabelValues(string(result.SourceVector), "").Inc()
		return page, nil
	}

	log := logger.FromContext(ctx)
	if cause != nil {
		log.Warn("Vector retrieval failed, falling back to text search",
			zap.String("reason", reason), zap.Error(cause))
	} else {
		log.Info("Vector retrieval empty, falling back to text search", zap.String("reason", reason))
	}
	span.SetAttributes(attribute.String("search.fallback_reason", reason))

	hits, err = s.textSearch(ctx, req)
	if err != nil {
		if cause != nil {
			return result.Page{}, errors.Join(err, cause)
		}
		return result.Page{}, err
	}
	page.Hits, page.Source = hits, result.SourceText
	metrics.RetrievalTotal.WithLabelValues(string(result.SourceText), reason).Inc()
	return page, nil
}

// Semantic runs pure vector retrieval for a required query. No fallback.
func (s *Service) Semantic(
	ctx context.Context, query string, f filter.Expression, topK int,
) (hits []result.Hit, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrQueryRequired
	}
	if topK <= 0 {
		topK = s.opts.SemanticTopK
	}
	topK = min(topK, s.opts.MaxTopK)

	ctx, span := tracing.Start(ctx, "retrieval.semantic", attribute.Int("search.top_k", topK))
	defer func() { tracing.End(span, err) }()

	emb, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.query(ctx, emb, f, topK)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, matches, f)
}

func (s *Service) listing(ctx context.Context, req request.Request) (hits []result.Hit, err error) {
	ctx, cancel := withTimeout(ctx, s.opts.CatalogTimeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "retrieval.listing")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	products, err := s.catalog.FindPage(ctx, req.Filters(), req.Offset(), req.Limit())
	metrics.ObserveUpstream(stageListing, start, err)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	hits = make([]result.Hit, len(products))
	for i, p := range products {
		hits[i] = result.Unscored(p)
	}
	return hits, nil
}

// vectorPath returns the page, or a non-empty fallback reason with the error that caused it.
func (s *Service) vectorPath(ctx context.Context, req request.Request) ([]result.Hit, string, error) {
	emb, err := s.embedQuery(ctx, req.Query())
	if err != nil {
		return nil, ReasonEmbedError, err
	}

	matches, err := s.query(ctx, emb, req.Filters(), s.candidates(req))
	if err != nil {
		return nil, ReasonVectorError, err
	}
	if len(matches) == 0 {
		return nil, ReasonEmpty, nil
	}

	hits, err := s.hydrate(ctx, matches, req.Filters())
	if err != nil {
		return nil, ReasonHydrateError, err
	}
	if len(hits) == 0 {
		// every candidate was stale or filtered out
		return nil, ReasonEmpty, nil
	}

	return paginate(hits, req.Offset(), req.Limit()), "", nil
}

// candidates sizes the vector pool so that the requested page can be cut after hydration.
func (s *Service) candidates(req request.Request) int {
	k := max(s.opts.MinTopK, req.End())
	return min(max(k, 1), s.opts.MaxTopK)
}

func (s *Service) embedQuery(ctx context.Context, query string) (emb []float32, err error) {
	ctx, cancel := withTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "retrieval.embed")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	res, err := s.embed.Embed(ctx, query)
	metrics.ObserveUpstream(stageEmbed, start, err)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return res.Embedding, nil
}

func (s *Service) query(
	ctx context.Context, emb []float32, f filter.Expression, topK int,
) (matches []vectorMatch, err error) {
	ctx, cancel := withTimeout(ctx, s.opts.VectorTimeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "retrieval.vector_query", attribute.Int("search.top_k", topK))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	raw, err := s.index.Query(ctx, emb, matchOnly(f), topK)
	metrics.ObserveUpstream(stageVector, start, err)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	matches = make([]vectorMatch, len(raw))
	for i, m := range raw {
		matches[i] = vectorMatch{id: m.ID, score: m.Score}
	}
	span.SetAttributes(attribute.Int("search.matches", len(matches)))
	return matches, nil
}

type vectorMatch struct {
	id    string
	score float64
}

// hydrate loads products for matches in similarity order. Ids missing from the catalog
// are dropped, and so are products that no longer satisfy f (stale index metadata).
func (s *Service) hydrate(ctx context.Context, matches []vectorMatch, f filter.Expression) (hits []result.Hit, err error) {
	ctx, cancel := withTimeout(ctx, s.opts.CatalogTimeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "retrieval.hydrate", attribute.Int("search.ids", len(matches)))
	defer func() { tracing.End(span, err) }()

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}

	start := time.Now()
	products, err := s.catalog.FindByIDs(ctx, ids)
	metrics.ObserveUpstream(stageHydrate, start, err)
	if err != nil {
		return nil, fmt.Errorf("hydrate %d ids: %w", len(ids), err)
	}

	byID := make(map[string]domprod.Product, len(products))
	for _, p := range products {
		byID[p.ID()] = p
	}

	hits = make([]result.Hit, 0, len(matches))
	for _, m := range matches {
		p, ok := byID[m.id]
		if !ok || !f.Matches(attributes(p)) {
			continue
		}
		delete(byID, m.id) // duplicate ids from the engine count once
		hits = append(hits, result.New(p, m.score))
	}
	return hits, nil
}

func (s *Service) textSearch(ctx context.Context, req request.Request) (hits []result.Hit, err error) {
	ctx, cancel := withTimeout(ctx, s.opts.CatalogTimeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "retrieval.text_search")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	hits, err = s.catalog.TextSearch(ctx, req.Query(), req.Filters(), req.Offset(), req.Limit())
	metrics.ObserveUpstream(stageText, start, err)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return hits, nil
}

func attributes(p domprod.Product) (map[string]string, map[string]float64) {
	return map[string]string{
			filter.KeyCategory:    p.Category(),
			filter.KeySubcategory: p.Subcategory(),
		}, map[string]float64{
			filter.KeyPrice: p.Price(),
			filter.KeyStock: float64(p.Stock()),
		}
}

// matchOnly keeps the exact-match part of f; ranges are applied after hydration.
func matchOnly(f filter.Expression) filter.Expression {
	if f.MatchOnly() {
		return f
	}
	var must []filter.Condition
	for _, c := range f.Must() {
		if c.IsMatch() {
			must = append(must, c)
		}
	}
	out, _ := filter.NewExpression(must...)
	return out
}

func paginate(hits []result.Hit, offset, limit int) []result.Hit {
	if offset < 0 || offset >= len(hits) || limit <= 0 {
		return []result.Hit{}
	}
	return hits[offset:offset+min(limit, len(hits)-offset)]
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
