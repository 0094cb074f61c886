// internal/adapter/cache/redis.go

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"proximate/internal/domain/location"
)

// RedisCache implements location.Cache on a single Redis instance. Bucket
// members live in geospatial sets, which are sorted sets underneath, so plain
// ZRANGE enumerates them. Everything else is plain keys and sorted sets.
type RedisCache struct {
	client *redis.Client
}

var _ location.Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache backed by the given client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) AddPosition(ctx context.Context, bucketKey, memberID string, pos location.Position) error {
	err := c.client.GeoAdd(ctx, bucketKey, &redis.GeoLocation{
		Name:      memberID,
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", bucketKey, err)
	}
	return nil
}

func (c *RedisCache) Positions(ctx context.Context, bucketKey string) ([]location.Member, error) {
	ids, err := c.client.ZRange(ctx, bucketKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", bucketKey, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	coords, err := c.client.GeoPos(ctx, bucketKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("geopos %s: %w", bucketKey, err)
	}

	members := make([]location.Member, 0, len(ids))
	for i, id := range ids {
		if i >= len(coords) || coords[i] == nil {
			// Member vanished between the two reads.
			continue
		}
		members = append(members, location.Member{
			ID: id,
			Position: location.Position{
				Latitude:  coords[i].Latitude,
				Longitude: coords[i].Longitude,
			},
		})
	}
	return members, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN rather than KEYS so a large index does
// not block the server.
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	created, err := c.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return created, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", location.ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

func (c *RedisCache) AddScored(ctx context.Context, key, member string, score float64) error {
	err := c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	if err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) ScoredSince(ctx context.Context, key string, min float64) ([]string, error) {
	members, err := c.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(min, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore %s: %w", key, err)
	}
	return members, nil
}
