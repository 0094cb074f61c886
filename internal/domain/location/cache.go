package location

import (
	"context"
	"errors"
	"time"
)

// ErrMiss reports an absent cache key. Infrastructure failures wrap the
// underlying transport error instead.
var ErrMiss = errors.New("cache: key not found")

// Cache is the TTL-bounded spatial-temporal store shared by the ingestion
// pipeline, the proximity scanner and the match engine. Implementations own
// expiry; callers never sweep stale entries themselves.
type Cache interface {
	// AddPosition upserts a positioned member into a bucket's geospatial set.
	AddPosition(ctx context.Context, bucketKey, memberID string, pos Position) error

	// Positions lists every member of a bucket with its coordinates.
	Positions(ctx context.Context, bucketKey string) ([]Member, error)

	// Exists reports whether a key is currently live.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets the remaining lifetime of a live key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Keys enumerates live keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Set writes a plain value with a lifetime, overwriting any prior value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent atomically creates a key and reports whether this call
	// created it.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)

	// Get reads a plain value, returning ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes keys; deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) error

	// AddScored upserts a member of a sorted structure with a score.
	AddScored(ctx context.Context, key, member string, score float64) error

	// ScoredSince lists members whose score is >= min, ascending.
	ScoredSince(ctx context.Context, key string, min float64) ([]string, error)
}

// Scanner discovers users that are currently physically near each other and
// materializes the nearby relationships.
type Scanner interface {
	// Start begins the periodic scan loop.
	Start(ctx context.Context) error

	// Stop signals the loop to finish its in-flight cycle and waits for it.
	Stop(ctx context.Context) error

	// ScanOnce runs a single scan cycle and returns the discovered
	// user -> nearby-users mapping.
	ScanOnce(ctx context.Context) (map[string][]string, error)

	// NearbyUsers returns the ids currently recorded as near userID.
	NearbyUsers(ctx context.Context, userID string) ([]string, error)
}
