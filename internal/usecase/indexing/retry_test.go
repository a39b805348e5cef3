package indexing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/talk2shop/internal/domain"
)

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := p.backoff(i); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{}.normalized()
	if p.MaxAttempts != DefaultPolicy().MaxAttempts || p.InitialBackoff <= 0 || p.MaxBackoff < p.InitialBackoff {
		t.Errorf("normalized = %+v", p)
	}
}

func TestPolicy_AttemptTimeout(t *testing.T) {
	p := testPolicy()
	p.AttemptTimeout = 10 * time.Millisecond

	attempts, err := p.do(context.Background(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("attempt must carry a deadline")
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, timeouts are retried", attempts)
	}
}

func TestPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	attempts, err := p.do(ctx, func(context.Context) error {
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d", attempts)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{domain.ErrIndexUnavailable, true},
		{domain.ErrEmbeddingTimeout, true},
		{errors.New("connection reset"), true},
		{domain.ErrDimensionMismatch, false},
		{domain.ErrInvalidProduct, false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
