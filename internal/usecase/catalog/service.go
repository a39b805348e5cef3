// Package catalog is the product admin service. Every successful write is followed by a
// write-through to the vector index. The write-through runs after the response in its own
// goroutine and its failure never fails the write itself.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/logger"
)

// Service handles product reads and writes.
type Service struct {
	repo            Repository
	indexer         Indexer
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int

	pending sync.WaitGroup
}

// New creates a catalog service.
func New(repo Repository, indexer Indexer) *Service {
	return &Service{
		repo:            repo,
		indexer:         indexer,
		now:             time.Now,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id string) (domprod.Product, error) {
	if err := checkID(id); err != nil {
		return domprod.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domprod.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// List returns one page of products, newest first. Out-of-range page and limit are clamped.
func (s *Service) List(ctx context.Context, page, limit int) ([]domprod.Product, error) {
	page = max(page, 1)
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	limit = min(limit, s.maxPageSize)

	products, err := s.repo.FindPage(ctx, filter.Expression{}, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Categories returns the sorted distinct categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.repo.DistinctCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Create validates and stores a new product, then indexes it. An empty id is generated.
func (s *Service) Create(ctx context.Context, id string, f domprod.Fields) (domprod.Product, error) {
	p, err := domprod.New(id, f, s.now())
	if err != nil {
		return domprod.Product{}, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return domprod.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.index(ctx, p)
	return p, nil
}

// Update applies a partial update. The vector is refreshed when the embedded text changed
// or the product was already marked stale.
func (s *Service) Update(ctx context.Context, id string, patch domprod.Patch) (domprod.Product, error) {
	if err := checkID(id); err != nil {
		return domprod.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domprod.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if patch.IsEmpty() {
		return current, nil
	}

	updated, err := current.Apply(patch, s.now())
	if err != nil {
		return domprod.Product{}, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return domprod.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	if patch.TouchesEmbedding() || updated.ReindexNeeded() {
		s.index(ctx, updated)
	}
	return updated, nil
}

// Delete removes a product and its vector.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	s.detach(ctx, func(ctx context.Context) {
		if err := s.indexer.Remove(ctx, id); err != nil {
			logger.FromContext(ctx).Warn("Product deleted but its vector was kept",
				zap.String("product_id", id), zap.Error(err))
		}
	})
	return nil
}

// Wait blocks until every write-through started so far has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) index(ctx context.Context, p domprod.Product) {
	s.detach(ctx, func(ctx context.Context) {
		if err := s.indexer.Index(ctx, p); err != nil {
			logger.FromContext(ctx).Warn("Product saved without a fresh vector",
				zap.String("product_id", p.ID()), zap.Error(err))
		}
	})
}

// detach runs fn outside the request. The context keeps its values (logger, trace) but not
// its cancellation.
func (s *Service) detach(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn(ctx)
	}()
}

// checkID rejects ids no store could hold. Product ids are always UUIDs.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return nil
}
