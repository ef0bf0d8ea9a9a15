package health

import "context"

// Checker reports availability of one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Counter is implemented by indexes that can report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}
