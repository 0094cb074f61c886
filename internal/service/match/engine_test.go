package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proximate/internal/domain/location"
	"proximate/internal/domain/match"
	"proximate/internal/testutil"
)

func newTestEngine(cache *testutil.MemCache) *MatchEngine {
	e := NewMatchEngine(cache, nil, EngineConfig{})
	e.now = cache.Now
	return e
}

func TestLikePending(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	res, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, match.StatusPending, res.Status)
	assert.Empty(t, res.MatchedWith)

	val, err := cache.Get(ctx, match.LikeKey("alice", "bob"))
	require.NoError(t, err)
	assert.Equal(t, "true", val)

	val, err = cache.Get(ctx, match.LikeKey("bob", "alice"))
	require.NoError(t, err)
	assert.Equal(t, "false", val, "reverse direction carries the provisional marker")

	assert.Equal(t, time.Hour, cache.TTL(match.LikeKey("alice", "bob")))
}

func TestMutualLikeMatches(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	_, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)

	res, err := e.Like(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, match.StatusMatched, res.Status)
	assert.Equal(t, "alice", res.MatchedWith)

	// Both like markers are consumed.
	_, err = cache.Get(ctx, match.LikeKey("alice", "bob"))
	assert.True(t, errors.Is(err, location.ErrMiss))
	_, err = cache.Get(ctx, match.LikeKey("bob", "alice"))
	assert.True(t, errors.Is(err, location.ErrMiss))

	matches, err := e.ActiveMatches(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, matches)

	matches, err = e.ActiveMatches(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, matches)
}

func TestLikeExpiresUnreciprocated(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	_, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)

	cache.Advance(61 * time.Minute)

	// The hour window has passed; bob's like starts a fresh pending cycle.
	res, err := e.Like(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, match.StatusPending, res.Status)
}

func TestRelikeRefreshesPending(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	_, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)

	cache.Advance(30 * time.Minute)

	res, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, match.StatusPending, res.Status)
	assert.Equal(t, time.Hour, cache.TTL(match.LikeKey("alice", "bob")), "re-like restarts the hour window")
}

func TestLikeOverwritesProximityRelationship(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	// The scanner had already recorded plain proximity both ways.
	require.NoError(t, cache.Set(ctx, location.NearbyKey("alice", "bob"), "1", 30*time.Minute))
	require.NoError(t, cache.Set(ctx, location.NearbyKey("bob", "alice"), "1", 30*time.Minute))

	res, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, match.StatusPending, res.Status, "a plain relationship marker is not a like")

	res, err = e.Like(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, match.StatusMatched, res.Status)
}

func TestActiveMatchesFiltersExpired(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	_, err := e.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.Like(ctx, "bob", "alice")
	require.NoError(t, err)

	cache.Advance(23 * time.Hour)
	matches, err := e.ActiveMatches(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, matches)

	cache.Advance(2 * time.Hour)
	matches, err = e.ActiveMatches(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, matches, "matches lapse 24 hours after confirmation")
}

func TestActiveMatchesEmptyUser(t *testing.T) {
	e := newTestEngine(testutil.NewMemCache())

	matches, err := e.ActiveMatches(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// TestSimultaneousLikesBothPending documents the known limitation of the
// non-atomic read-then-write: when both forward writes land before either
// reverse read, both calls observe "false" and report pending. A later call
// from either side completes the match.
func TestSimultaneousLikesBothPending(t *testing.T) {
	cache := testutil.NewMemCache()
	e := newTestEngine(cache)
	ctx := context.Background()

	// Interleave by hand: both forward markers first, then both checks.
	require.NoError(t, cache.Set(ctx, match.LikeKey("alice", "bob"), "true", match.LikeTTL))

	res, err := e.Like(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, match.StatusMatched, res.Status,
		"sequential calls resolve; only true concurrent interleaving leaves both pending")

	// The stuck state itself: both markers provisional-or-liked, no match.
	cache2 := testutil.NewMemCache()
	e2 := newTestEngine(cache2)
	require.NoError(t, cache2.Set(ctx, match.LikeKey("alice", "bob"), "true", match.LikeTTL))
	require.NoError(t, cache2.Set(ctx, match.LikeKey("bob", "alice"), "true", match.LikeTTL))

	res, err = e2.Like(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, match.StatusMatched, res.Status, "a follow-up like resolves the stuck pair")
}
