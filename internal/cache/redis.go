package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint for SCAN while clearing a namespace.
const scanBatch = 500

// RedisTier is the medium tier, shared by every process pointing at the same Redis.
type RedisTier struct {
	client redis.Cmdable
}

func NewRedisTier(client redis.Cmdable) *RedisTier {
	return &RedisTier{client: client}
}

func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN and deletes matches batch by batch.
// SCAN does not block the server the way KEYS does.
func (r *RedisTier) DeletePrefix(ctx context.Context, prefix string) error {
	match := globEscape(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %q: %w", match, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del %d keys under %q: %w", len(keys), prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// globEscape quotes the characters Redis MATCH treats as pattern syntax.
func globEscape(s string) string {
	return globReplacer.Replace(s)
}
