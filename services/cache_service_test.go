package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"spark_server/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip through both tiers", func(t *testing.T) {
		fake := newFakeDynamo()
		cache := NewCacheService(fake, zerolog.Nop())

		cache.Set(ctx, "alice", "discover#sv8w#abcd1234#0", `[{"userId":"bob"}]`, time.Minute)

		payload, ok := cache.Get(ctx, "alice", "discover#sv8w#abcd1234#0")
		require.True(t, ok)
		assert.Equal(t, `[{"userId":"bob"}]`, payload)
		assert.Equal(t, 1, fake.count(models.DiscoveryCacheTable))
	})

	t.Run("miss for unknown keys", func(t *testing.T) {
		cache := NewCacheService(newFakeDynamo(), zerolog.Nop())
		_, ok := cache.Get(ctx, "alice", "discover#nothing")
		assert.False(t, ok)
	})

	t.Run("keys are scoped per owner", func(t *testing.T) {
		cache := NewCacheService(newFakeDynamo(), zerolog.Nop())
		cache.Set(ctx, "alice", "discover#k", "payload", time.Minute)

		_, ok := cache.Get(ctx, "bob", "discover#k")
		assert.False(t, ok)
	})

	t.Run("expired durable entries are evicted, not served", func(t *testing.T) {
		fake := newFakeDynamo()
		cache := NewCacheService(fake, zerolog.Nop())

		fake.seed(models.DiscoveryCacheTable, models.CacheEntry{
			OwnerID:    "alice",
			CacheKey:   "discover#stale",
			Payload:    "old",
			Timestamp:  time.Now().Add(-10 * time.Minute).Unix(),
			TTLSeconds: 60,
		})

		_, ok := cache.Get(ctx, "alice", "discover#stale")
		assert.False(t, ok)
		assert.Zero(t, fake.count(models.DiscoveryCacheTable))
	})

	t.Run("durable hit promotes to memory", func(t *testing.T) {
		fake := newFakeDynamo()
		cache := NewCacheService(fake, zerolog.Nop())

		fake.seed(models.DiscoveryCacheTable, models.CacheEntry{
			OwnerID:    "alice",
			CacheKey:   "discover#warm",
			Payload:    "fresh",
			Timestamp:  time.Now().Unix(),
			TTLSeconds: 120,
		})

		payload, ok := cache.Get(ctx, "alice", "discover#warm")
		require.True(t, ok)
		assert.Equal(t, "fresh", payload)

		_, inMemory := cache.memory.Get(memoryKey("alice", "discover#warm"))
		assert.True(t, inMemory)
	})
}

func TestInvalidateByPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	cache := NewCacheService(fake, zerolog.Nop())

	cache.Set(ctx, "alice", "discover#sv8w#a#0", "p0", time.Minute)
	cache.Set(ctx, "alice", "discover#sv8w#a#1", "p1", time.Minute)
	cache.Set(ctx, "alice", "other#key", "kept", time.Minute)
	cache.Set(ctx, "bob", "discover#sv8w#a#0", "bobs", time.Minute)

	require.NoError(t, cache.InvalidateByPrefix(ctx, "alice", "discover#"))

	_, ok := cache.Get(ctx, "alice", "discover#sv8w#a#0")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "alice", "discover#sv8w#a#1")
	assert.False(t, ok)

	payload, ok := cache.Get(ctx, "alice", "other#key")
	require.True(t, ok)
	assert.Equal(t, "kept", payload)

	payload, ok = cache.Get(ctx, "bob", "discover#sv8w#a#0")
	require.True(t, ok, "other owners are untouched")
	assert.Equal(t, "bobs", payload)
}

func TestInvalidateByPrefixBeyondOnePage(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	cache := NewCacheService(fake, zerolog.Nop())

	// More durable rows than one bounded query returns.
	for i := 0; i < 250; i++ {
		fake.seed(models.DiscoveryCacheTable, models.CacheEntry{
			OwnerID:    "alice",
			CacheKey:   fmt.Sprintf("discover#sv8w#a#%d", i),
			Payload:    "p",
			Timestamp:  time.Now().Unix(),
			TTLSeconds: 300,
		})
	}
	fake.seed(models.DiscoveryCacheTable, models.CacheEntry{
		OwnerID: "alice", CacheKey: "other#key", Payload: "kept",
		Timestamp: time.Now().Unix(), TTLSeconds: 300,
	})

	require.NoError(t, cache.InvalidateByPrefix(ctx, "alice", "discover#"))

	assert.Equal(t, 1, fake.count(models.DiscoveryCacheTable), "every prefixed row must go, however many pages")
	payload, ok := cache.Get(ctx, "alice", "other#key")
	require.True(t, ok)
	assert.Equal(t, "kept", payload)
}

func TestWarmFromDurable(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()

	fake.seed(models.DiscoveryCacheTable, models.CacheEntry{
		OwnerID: "alice", CacheKey: "discover#live", Payload: "live",
		Timestamp: time.Now().Unix(), TTLSeconds: 300,
	})
	fake.seed(models.DiscoveryCacheTable, models.CacheEntry{
		OwnerID: "alice", CacheKey: "discover#dead", Payload: "dead",
		Timestamp: time.Now().Add(-time.Hour).Unix(), TTLSeconds: 60,
	})

	cache := NewCacheService(fake, zerolog.Nop())
	cache.WarmFromDurable(ctx)

	_, ok := cache.memory.Get(memoryKey("alice", "discover#live"))
	assert.True(t, ok)
	_, ok = cache.memory.Get(memoryKey("alice", "discover#dead"))
	assert.False(t, ok)
	assert.Equal(t, 1, fake.count(models.DiscoveryCacheTable), "expired entries are dropped during warm-up")
}
