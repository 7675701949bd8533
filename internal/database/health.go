package database

import (
	"context"
	"errors"
)

// Pinger is the subset of *pgxpool.Pool the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports PostgreSQL reachability to the observability server.
type HealthChecker struct {
	pool Pinger
}

func NewHealthChecker(pool Pinger) *HealthChecker {
	return &HealthChecker{pool: pool}
}

func (h *HealthChecker) Name() string {
	return "postgres"
}

func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return errors.New("postgres pool is nil")
	}
	return h.pool.Ping(ctx)
}
