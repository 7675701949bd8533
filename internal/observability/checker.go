package observability

import "context"

// Checker is a dependency probed by the readiness endpoint (e.g. "postgres", "redis").
// Check must honour ctx so a hung dependency cannot stall the probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}
