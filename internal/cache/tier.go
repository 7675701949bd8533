// Package cache implements the tiered cache behind the pricing engine: a fast
// in-process tier (otter), a shared Redis tier and a durable PostgreSQL tier,
// composed by Tiered and addressed through the domain helpers on Manager.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTTL is returned by tiers for non-positive TTLs. Every cache entry expires.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Tier is one cache backend. Tiers are ordered fast to slow inside Tiered.
//
// Get reports a miss as (nil, false, nil). An error means the tier could not be
// consulted at all; Tiered treats it as a miss.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
