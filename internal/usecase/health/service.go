package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in reports.
const (
	ComponentIndex     = "vector_index"
	ComponentEmbedding = "embedding"
	ComponentStore     = "store"
)

// DefaultTimeout bounds each check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results. Documents is the index size when the
// index is reachable and can count.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Documents *int                   `json:"documents,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	checks  map[string]Checker
	timeout time.Duration
}

// New creates a Service. The index check is mandatory; nil optional checkers are omitted.
func New(index, embedding, store Checker) *Service {
	s := &Service{checks: map[string]Checker{ComponentIndex: index}, timeout: DefaultTimeout}
	if embedding != nil {
		s.checks[ComponentEmbedding] = embedding
	}
	if store != nil {
		s.checks[ComponentStore] = store
	}
	return s
}

// Check runs all checks in parallel.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		documents *int
	)
	for name, c := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.HealthCheck(cctx); err != nil {
				res = CheckError
			}
			var n *int
			if counter, ok := c.(Counter); ok && name == ComponentIndex && res == CheckOK {
				if count, err := counter.Count(cctx); err == nil {
					n = &count
				}
			}
			mu.Lock()
			checks[name] = res
			if n != nil {
				documents = n
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks, Documents: documents}
}
