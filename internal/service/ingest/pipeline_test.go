package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proximate/internal/domain/location"
	"proximate/internal/geocell"
	"proximate/internal/testutil"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func newTestPipeline(cache location.Cache, now time.Time) *Pipeline {
	p := NewPipeline(cache, ist, PipelineConfig{})
	p.now = func() time.Time { return now }
	return p
}

func ping(userID string, lat, lon float64, at time.Time) []byte {
	return []byte(fmt.Sprintf(
		`{"userId":%q,"latitude":%v,"longitude":%v,"userDateTime":%q}`,
		userID, lat, lon, at.Format(time.RFC3339),
	))
}

func TestPipelineIndexesValidPing(t *testing.T) {
	cache := testutil.NewMemCache()
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, ist)
	p := newTestPipeline(cache, now)

	observed := time.Date(2025, 6, 1, 10, 2, 30, 0, ist)
	accepted, err := p.Process(context.Background(), [][]byte{ping("u1", 12.9716, 77.5946, observed)})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	cell, err := geocell.Encode(12.9716, 77.5946, geocell.Precision)
	require.NoError(t, err)
	bucketKey := location.BucketKey(cell, "10:00")

	members, err := cache.Positions(context.Background(), bucketKey)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u1:10:02", members[0].ID)
	assert.Equal(t, 12.9716, members[0].Position.Latitude)

	// Bucket lives until one hour past its nominal 10:00, i.e. 50m from now.
	assert.Equal(t, 50*time.Minute, cache.TTL(bucketKey))
}

func TestPipelineAcceptsBracketedZoneSuffix(t *testing.T) {
	cache := testutil.NewMemCache()
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, ist)
	p := newTestPipeline(cache, now)

	raw := []byte(`{"userId":"u1","latitude":12.9716,"longitude":77.5946,"userDateTime":"2025-06-01T10:02:30+05:30[Asia/Kolkata]"}`)
	accepted, err := p.Process(context.Background(), [][]byte{raw})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
}

func TestPipelineDropsInvalidMessages(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, ist)
	fresh := time.Date(2025, 6, 1, 10, 2, 30, 0, ist)

	cases := []struct {
		name string
		raw  []byte
	}{
		{"malformed json", []byte(`{"userId":`)},
		{"unknown field", []byte(`{"userId":"u1","latitude":1,"longitude":2,"userDateTime":"2025-06-01T10:02:30+05:30","extra":true}`)},
		{"missing userId", ping("", 12.9716, 77.5946, fresh)},
		{"missing coordinates", []byte(`{"userId":"u1","userDateTime":"2025-06-01T10:02:30+05:30"}`)},
		{"out of range latitude", ping("u1", 91, 77.5946, fresh)},
		{"in the future", ping("u1", 12.9716, 77.5946, now.Add(5*time.Minute))},
		{"exactly now", ping("u1", 12.9716, 77.5946, now)},
		{"older than an hour", ping("u1", 12.9716, 77.5946, now.Add(-61*time.Minute))},
		{"wrong zone offset", ping("u1", 12.9716, 77.5946, fresh.In(time.UTC))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := testutil.NewMemCache()
			p := newTestPipeline(cache, now)

			accepted, err := p.Process(context.Background(), [][]byte{tc.raw})
			require.NoError(t, err, "an invalid message drops, it never fails the batch")
			assert.Equal(t, 0, accepted)

			keys, err := cache.Keys(context.Background(), location.BucketPattern())
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestPipelineReingestionIsIdempotent(t *testing.T) {
	cache := testutil.NewMemCache()
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, ist)
	p := newTestPipeline(cache, now)

	observed := time.Date(2025, 6, 1, 10, 2, 30, 0, ist)
	raw := ping("u1", 12.9716, 77.5946, observed)

	accepted, err := p.Process(context.Background(), [][]byte{raw, raw})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	cell, err := geocell.Encode(12.9716, 77.5946, geocell.Precision)
	require.NoError(t, err)
	members, err := cache.Positions(context.Background(), location.BucketKey(cell, "10:00"))
	require.NoError(t, err)
	assert.Len(t, members, 1, "same user and minute collapse to one member")
}

func TestPipelineLaterMemberDoesNotExtendBucket(t *testing.T) {
	cache := testutil.NewMemCache()
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, ist)
	p := newTestPipeline(cache, now)

	first := ping("u1", 12.9716, 77.5946, time.Date(2025, 6, 1, 10, 2, 0, 0, ist))
	_, err := p.Process(context.Background(), [][]byte{first})
	require.NoError(t, err)

	cell, err := geocell.Encode(12.9716, 77.5946, geocell.Precision)
	require.NoError(t, err)
	bucketKey := location.BucketKey(cell, "10:00")
	ttlBefore := cache.TTL(bucketKey)

	second := ping("u2", 12.9716, 77.5946, time.Date(2025, 6, 1, 10, 4, 0, 0, ist))
	_, err = p.Process(context.Background(), [][]byte{second})
	require.NoError(t, err)

	assert.Equal(t, ttlBefore, cache.TTL(bucketKey))

	members, err := cache.Positions(context.Background(), bucketKey)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestPipelineCacheFailureAbortsBatch(t *testing.T) {
	cache := testutil.NewMemCache()
	cache.FailSet = errors.New("connection refused")
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, ist)
	p := newTestPipeline(cache, now)

	observed := time.Date(2025, 6, 1, 10, 2, 30, 0, ist)
	accepted, err := p.Process(context.Background(), [][]byte{ping("u1", 12.9716, 77.5946, observed)})
	require.Error(t, err)
	assert.Equal(t, 0, accepted)
}

func TestDecodeMessageRejectsTrailingData(t *testing.T) {
	_, err := decodeMessage([]byte(`{"userId":"u1","latitude":1,"longitude":2,"userDateTime":"x"}{"again":1}`))
	assert.Error(t, err)
}
