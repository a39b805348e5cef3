package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search still answers, possibly through the text fallback.
	Degraded Status = "degraded"
	// Unhealthy indicates the catalog itself is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in the report.
const (
	ComponentCatalog     = "catalog"
	ComponentVectorIndex = "vector_index"
	ComponentEmbedding   = "embedding"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	catalog   Checker
	index     Checker
	embedding Checker
	timeout   time.Duration
}

// New creates a Service. index and embedding can be nil.
func New(catalog, index, embedding Checker) *Service {
	return &Service{catalog: catalog, index: index, embedding: embedding, timeout: DefaultCheckTimeout}
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
	)

	components := map[string]Checker{ComponentCatalog: s.catalog}
	if s.index != nil {
		components[ComponentVectorIndex] = s.index
	}
	if s.embedding != nil {
		components[ComponentEmbedding] = s.embedding
	}

	var g errgroup.Group
	for name, c := range components {
		g.Go(func() error {
			res := s.run(ctx, c)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentCatalog] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
