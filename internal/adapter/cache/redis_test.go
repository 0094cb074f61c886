package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proximate/internal/domain/location"
)

// newTestCache connects to a local Redis and skips the test when none is
// running, so unit runs stay green without infrastructure.
func newTestCache(t *testing.T) *RedisCache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return NewRedisCache(client)
}

func testKey(t *testing.T, parts ...string) string {
	t.Helper()
	key := "test:" + t.Name()
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func TestRedisCachePositions(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	bucket := testKey(t, "bucket")

	require.NoError(t, c.AddPosition(ctx, bucket, "alice:10:00", location.Position{Latitude: 12.9716, Longitude: 77.5946}))
	require.NoError(t, c.AddPosition(ctx, bucket, "bob:10:01", location.Position{Latitude: 12.9717, Longitude: 77.5947}))

	members, err := c.Positions(ctx, bucket)
	require.NoError(t, err)
	require.Len(t, members, 2)

	byID := map[string]location.Position{}
	for _, m := range members {
		byID[m.ID] = m.Position
	}
	require.Contains(t, byID, "alice:10:00")
	require.Contains(t, byID, "bob:10:01")

	// Geo coordinates round-trip through a 52-bit geohash, so compare loosely.
	assert.InDelta(t, 12.9716, byID["alice:10:00"].Latitude, 0.0001)
	assert.InDelta(t, 77.5946, byID["alice:10:00"].Longitude, 0.0001)
}

func TestRedisCachePositionsEmptyBucket(t *testing.T) {
	c := newTestCache(t)

	members, err := c.Positions(context.Background(), testKey(t, "missing"))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRedisCacheSetIfAbsent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := testKey(t, "pair")

	created, err := c.SetIfAbsent(ctx, key, "1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.SetIfAbsent(ctx, key, "1")
	require.NoError(t, err)
	assert.False(t, created, "second create on a live key must report false")

	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestRedisCacheGetMiss(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Get(context.Background(), testKey(t, "absent"))
	assert.True(t, errors.Is(err, location.ErrMiss))
}

func TestRedisCacheExpire(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := testKey(t, "short")

	require.NoError(t, c.Set(ctx, key, "x", 0))
	require.NoError(t, c.Expire(ctx, key, 50*time.Millisecond))

	exists, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	time.Sleep(100 * time.Millisecond)

	exists, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCacheKeysPattern(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	prefix := testKey(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("%s:item:%d", prefix, i), "v", time.Minute))
	}
	require.NoError(t, c.Set(ctx, prefix+":other", "v", time.Minute))

	keys, err := c.Keys(ctx, prefix+":item:*")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestRedisCacheScoredSince(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := testKey(t, "matches")

	now := time.Now().Unix()
	require.NoError(t, c.AddScored(ctx, key, "expired", float64(now-60)))
	require.NoError(t, c.AddScored(ctx, key, "active", float64(now+3600)))

	members, err := c.ScoredSince(ctx, key, float64(now))
	require.NoError(t, err)
	assert.Equal(t, []string{"active"}, members)
}

func TestRedisCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	a, b := testKey(t, "a"), testKey(t, "b")

	require.NoError(t, c.Set(ctx, a, "x", time.Minute))
	require.NoError(t, c.Set(ctx, b, "y", time.Minute))
	require.NoError(t, c.Delete(ctx, a, b))
	require.NoError(t, c.Delete(ctx, a), "deleting an absent key is not an error")

	_, err := c.Get(ctx, a)
	assert.True(t, errors.Is(err, location.ErrMiss))
}
