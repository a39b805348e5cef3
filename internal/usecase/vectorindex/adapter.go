// Package vectorindex owns the lifecycle of the product similarity index: lazy creation,
// readiness, dimension checks and self-healing writes on top of a pluggable Backend.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultReadyTimeout = 30 * time.Second
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithPollInterval sets how often readiness is re-checked after creation.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithReadyTimeout bounds the wait for a freshly created index.
func WithReadyTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.readyTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Adapter maintains one versioned index described by spec.
type Adapter struct {
	backend      Backend
	spec         vector.Spec
	pollInterval time.Duration
	readyTimeout time.Duration
	logger       *zap.Logger

	init  singleflight.Group
	ready atomic.Bool
}

// New creates an adapter. No remote call is made until first use.
func New(b Backend, spec vector.Spec, opts ...Option) *Adapter {
	a := &Adapter{
		backend:      b,
		spec:         spec,
		pollInterval: defaultPollInterval,
		readyTimeout: defaultReadyTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Spec returns the index the adapter maintains.
func (a *Adapter) Spec() vector.Spec { return a.spec }

// Ready reports whether the index was confirmed ready.
func (a *Adapter) Ready() bool { return a.ready.Load() }

// EnsureIndex creates the index when absent and waits for it to become ready.
// Concurrent callers share one initialization; a caller whose ctx ends stops waiting
// without cancelling the shared work.
func (a *Adapter) EnsureIndex(ctx context.Context) error {
	if a.ready.Load() {
		return nil
	}

	ch := a.init.DoChan(a.spec.Name, func() (any, error) {
		return nil, a.ensure(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("ensure index %s: %w: %w", a.spec.Name, domain.ErrIndexUnavailable, ctx.Err())
	}
}

func (a *Adapter) ensure(ctx context.Context) error {
	info, err := a.backend.Describe(ctx, a.spec.Name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.logger.Info("Creating vector index",
			zap.String("index", a.spec.Name), zap.Int("dim", a.spec.Dim))
		if err := a.backend.Create(ctx, a.spec); err != nil {
			return fmt.Errorf("create index %s: %w: %w", a.spec.Name, domain.ErrIndexUnavailable, err)
		}
	case err != nil:
		return fmt.Errorf("describe index %s: %w: %w", a.spec.Name, domain.ErrIndexUnavailable, err)
	default:
		if err := a.checkInfo(info); err != nil {
			return err
		}
		if info.Ready {
			a.markReady(info)
			return nil
		}
	}

	return a.waitReady(ctx)
}

func (a *Adapter) waitReady(ctx context.Context) error {
	deadline := time.NewTimer(a.readyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("index %s not ready after %s: %w", a.spec.Name, a.readyTimeout, domain.ErrIndexUnavailable)
		case <-ticker.C:
		}

		info, err := a.backend.Describe(ctx, a.spec.Name)
		if err != nil {
			a.logger.Debug("Vector index not describable yet", zap.String("index", a.spec.Name), zap.Error(err))
			continue
		}
		if err := a.checkInfo(info); err != nil {
			return err
		}
		if info.Ready {
			a.markReady(info)
			return nil
		}
	}
}

func (a *Adapter) checkInfo(info vector.Info) error {
	if info.Dim != a.spec.Dim {
		return fmt.Errorf("index %s has %d dimensions, configured %d: %w",
			a.spec.Name, info.Dim, a.spec.Dim, domain.ErrDimensionMismatch)
	}
	return nil
}

func (a *Adapter) markReady(info vector.Info) {
	a.ready.Store(true)
	a.logger.Info("Vector index ready",
		zap.String("index", a.spec.Name), zap.Int("dim", info.Dim), zap.Int64("count", info.Count))
}

// Upsert writes one record.
func (a *Adapter) Upsert(ctx context.Context, rec vector.Record) error {
	return a.UpsertBatch(ctx, []vector.Record{rec})
}

// UpsertBatch writes records. Wrong-width embeddings are rejected before any remote call.
// An unavailable index is re-ensured and the write retried once.
func (a *Adapter) UpsertBatch(ctx context.Context, recs []vector.Record) error {
	if len(recs) == 0 {
		return nil
	}
	for i := range recs {
		if err := a.checkWidth(recs[i].Embedding); err != nil {
			return fmt.Errorf("record %s: %w", recs[i].ID, err)
		}
	}

	if err := a.EnsureIndex(ctx); err != nil {
		return err
	}

	err := a.backend.Upsert(ctx, a.spec.Name, recs)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		if err != nil {
			return fmt.Errorf("upsert into %s: %w", a.spec.Name, err)
		}
		return nil
	}

	a.logger.Warn("Vector index unavailable on upsert, re-ensuring",
		zap.String("index", a.spec.Name), zap.Error(err))
	a.ready.Store(false)
	if err := a.EnsureIndex(ctx); err != nil {
		return err
	}
	if err := a.backend.Upsert(ctx, a.spec.Name, recs); err != nil {
		return fmt.Errorf("upsert into %s after re-ensure: %w", a.spec.Name, err)
	}
	return nil
}

// DeleteByID removes a record. Unknown ids are not an error.
func (a *Adapter) DeleteByID(ctx context.Context, id string) error {
	if err := a.backend.Delete(ctx, a.spec.Name, id); err != nil {
		return fmt.Errorf("delete %s from %s: %w", id, a.spec.Name, err)
	}
	return nil
}

// Query returns up to topK matches, closest first. topK below 1 is raised to 1.
// Only exact-match filters are supported.
func (a *Adapter) Query(
	ctx context.Context, embedding []float32, filters filter.Expression, topK int,
) ([]vector.Match, error) {
	if !filters.MatchOnly() {
		return nil, errors.New("vector query supports exact-match filters only")
	}
	if err := a.checkWidth(embedding); err != nil {
		return nil, err
	}
	if err := a.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	matches, err := a.backend.Query(ctx, a.spec.Name, embedding, filters, max(topK, 1))
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			a.ready.Store(false)
		}
		return nil, fmt.Errorf("query %s: %w", a.spec.Name, err)
	}
	return matches, nil
}

// Drop deletes the index and all its records.
func (a *Adapter) Drop(ctx context.Context) error {
	a.ready.Store(false)
	if err := a.backend.Drop(ctx, a.spec.Name); err != nil {
		return fmt.Errorf("drop %s: %w", a.spec.Name, err)
	}
	a.logger.Info("Vector index dropped", zap.String("index", a.spec.Name))
	return nil
}

// HealthCheck reports ErrIndexUnavailable unless the index exists and is ready.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	info, err := a.backend.Describe(ctx, a.spec.Name)
	if err != nil {
		return fmt.Errorf("describe %s: %w: %w", a.spec.Name, domain.ErrIndexUnavailable, err)
	}
	if err := a.checkInfo(info); err != nil {
		return err
	}
	if !info.Ready {
		return fmt.Errorf("index %s is loading: %w", a.spec.Name, domain.ErrIndexUnavailable)
	}
	return nil
}

func (a *Adapter) checkWidth(embedding []float32) error {
	if len(embedding) != a.spec.Dim {
		return fmt.Errorf("embedding has %d dimensions, index %s expects %d: %w",
			len(embedding), a.spec.Name, a.spec.Dim, domain.ErrDimensionMismatch)
	}
	return nil
}
