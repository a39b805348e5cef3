package health

import "context"

// Checker reports the availability of one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a ping function to Checker.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
