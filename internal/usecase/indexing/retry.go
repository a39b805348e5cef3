package indexing

import (
	"context"
	"errors"
	"time"

	"github.com/kailas-cloud/talk2shop/internal/domain"
)

// Policy bounds the write-through retries.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultPolicy returns the production retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// backoff returns the delay before attempt n+1 (n is 0-based): doubling, capped.
func (p Policy) backoff(n int) time.Duration {
	d := p.InitialBackoff
	for i := 0; i < n && d < p.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

// do runs fn up to MaxAttempts times. Each attempt gets its own deadline when
// AttemptTimeout is set. Non-retryable errors return immediately.
func (p Policy) do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(p.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return attempt, errors.Join(err, ctx.Err())
			case <-t.C:
			}
		}

		err = p.attempt(ctx, fn)
		if err == nil {
			return attempt + 1, nil
		}
		if !retryable(err) {
			return attempt + 1, err
		}
	}
	return p.MaxAttempts, err
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(ctx)
}

// retryable reports whether another attempt can change the outcome.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
