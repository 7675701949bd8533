package config

import (
	"fmt"
	"time"
)

// CacheConfig controls the tiered cache composition.
// The memory tier is always present; Redis and the durable PostgreSQL tier are optional.
type CacheConfig struct {
	// Namespace prefixes every cache key so several stores can share one Redis/DB.
	Namespace string `envconfig:"NAMESPACE" default:"vibe" validate:"required,alphanum"`

	// Memory (fast volatile tier)
	MemoryCapacity int `envconfig:"MEMORY_CAPACITY" default:"10000" validate:"min=1"`

	// Medium tier
	RedisEnabled bool `envconfig:"REDIS_ENABLED" default:"true"`

	// Durable tier
	DurableEnabled bool   `envconfig:"DURABLE_ENABLED" default:"true"`
	DurableTable   string `envconfig:"DURABLE_TABLE" default:"vibe_cache" validate:"required"`

	// BackfillTTL is applied when a value found in a slower tier is copied into faster ones.
	BackfillTTL time.Duration `envconfig:"BACKFILL_TTL" default:"5m"`
}

// Validate checks CacheConfig fields that struct tags cannot express.
func (c *CacheConfig) Validate() error {
	if c.BackfillTTL <= 0 {
		return fmt.Errorf("cache backfill TTL must be positive, got %s", c.BackfillTTL)
	}
	if err := validateNoWhitespace(c.DurableTable, "cache durable table"); err != nil {
		return err
	}
	return nil
}
