//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/cache"
	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/testsupport"
)

// exerciseTier runs the Tier contract against a live backend.
func exerciseTier(t *testing.T, tier cache.Tier) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, ok, err := tier.Get(ctx, "vibe:absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "vibe:index", []byte("v1"), time.Minute))
		require.NoError(t, tier.Set(ctx, "vibe:index", []byte("v2"), time.Minute))

		got, ok, err := tier.Get(ctx, "vibe:index")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "vibe:cart:x", []byte("v"), time.Minute))
		require.NoError(t, tier.Delete(ctx, "vibe:cart:x"))
		_, ok, err := tier.Get(ctx, "vibe:cart:x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete prefix keeps siblings", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "vibe:product_rules:1", []byte("a"), time.Minute))
		require.NoError(t, tier.Set(ctx, "vibe:product_rules:2", []byte("b"), time.Minute))
		require.NoError(t, tier.Set(ctx, "vibe:productXrules:3", []byte("c"), time.Minute))

		require.NoError(t, tier.DeletePrefix(ctx, "vibe:product_rules:"))

		_, ok1, _ := tier.Get(ctx, "vibe:product_rules:1")
		_, ok2, _ := tier.Get(ctx, "vibe:product_rules:2")
		_, ok3, _ := tier.Get(ctx, "vibe:productXrules:3")
		assert.False(t, ok1)
		assert.False(t, ok2)
		assert.True(t, ok3, "underscore must not act as a wildcard")
	})

	t.Run("expired entries are not served", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "vibe:short", []byte("v"), time.Second))
		require.Eventually(t, func() bool {
			_, ok, err := tier.Get(ctx, "vibe:short")
			return err == nil && !ok
		}, 5*time.Second, 100*time.Millisecond)
	})
}

func TestRedisTier_Integration(t *testing.T) {
	ctx := context.Background()
	ctr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer ctr.Terminate(ctx)

	exerciseTier(t, cache.NewRedisTier(ctr.Client))

	t.Run("health checker", func(t *testing.T) {
		h := cache.NewHealthChecker(ctr.Client)
		assert.NoError(t, h.Check(ctx))
	})
}

func TestPostgresTier_Integration(t *testing.T) {
	ctx := context.Background()
	ctr, err := testsupport.StartPostgresContainer(ctx, "../../schema")
	require.NoError(t, err)
	defer ctr.Terminate(ctx)

	tier := cache.NewPostgresTier(ctr.DB, "vibe_cache")
	exerciseTier(t, tier)

	t.Run("sweep removes expired rows only", func(t *testing.T) {
		_, err := ctr.DB.Exec(ctx, `TRUNCATE vibe_cache`)
		require.NoError(t, err)

		_, err = ctr.DB.Exec(ctx, `INSERT INTO vibe_cache VALUES
			('vibe:old:1', 'x', now() - interval '1 hour'),
			('vibe:old:2', 'x', now() - interval '1 minute'),
			('vibe:live', 'x', now() + interval '1 hour')`)
		require.NoError(t, err)

		n, err := tier.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, ok, err := tier.Get(ctx, "vibe:live")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestTiered_Integration_BackfillFromDurable(t *testing.T) {
	ctx := context.Background()

	pg, err := testsupport.StartPostgresContainer(ctx, "../../schema")
	require.NoError(t, err)
	defer pg.Terminate(ctx)
	rd, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer rd.Terminate(ctx)

	mem, err := cache.NewMemoryTier(100)
	require.NoError(t, err)
	defer mem.Close()
	redisTier := cache.NewRedisTier(rd.Client)
	durable := cache.NewPostgresTier(pg.DB, "vibe_cache")

	require.NoError(t, durable.Set(ctx, "vibe:index", []byte("compiled"), time.Hour))

	tiered := cache.NewTiered(nil, time.Minute, mem, redisTier, durable)
	got, ok := tiered.Get(ctx, "vibe:index")
	require.True(t, ok)
	assert.Equal(t, []byte("compiled"), got)

	_, inMem, _ := mem.Get(ctx, "vibe:index")
	_, inRedis, _ := redisTier.Get(ctx, "vibe:index")
	assert.True(t, inMem)
	assert.True(t, inRedis)
}
