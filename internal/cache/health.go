package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// HealthChecker reports Redis reachability to the observability server.
type HealthChecker struct {
	client redis.Cmdable
}

func NewHealthChecker(client redis.Cmdable) *HealthChecker {
	return &HealthChecker{client: client}
}

func (h *HealthChecker) Name() string {
	return "redis"
}

func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return errors.New("redis client is nil")
	}
	return h.client.Ping(ctx).Err()
}
