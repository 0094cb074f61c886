// Package testutil provides in-memory fakes for package tests.
package testutil

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"proximate/internal/domain/location"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemCache is an in-memory location.Cache with a manually advanced clock, so
// TTL behavior can be tested without a Redis server and without sleeping.
type MemCache struct {
	mu     sync.Mutex
	now    time.Time
	vals   map[string]entry
	geos   map[string]map[string]location.Position
	geoExp map[string]time.Time
	zsets  map[string]map[string]float64

	// FailSet, when set, makes every write-path call return this error.
	FailSet error
}

var _ location.Cache = (*MemCache)(nil)

func NewMemCache() *MemCache {
	return &MemCache{
		now:    time.Now(),
		vals:   make(map[string]entry),
		geos:   make(map[string]map[string]location.Position),
		geoExp: make(map[string]time.Time),
		zsets:  make(map[string]map[string]float64),
	}
}

// Now returns the fake clock's current time.
func (c *MemCache) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward and sweeps expired keys.
func (c *MemCache) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sweep()
}

// TTL returns the remaining lifetime of a key, or zero when none is set.
func (c *MemCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.vals[key]; ok && !e.expiresAt.IsZero() {
		return e.expiresAt.Sub(c.now)
	}
	if exp, ok := c.geoExp[key]; ok && !exp.IsZero() {
		return exp.Sub(c.now)
	}
	return 0
}

func (c *MemCache) sweep() {
	for k, e := range c.vals {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(c.now) {
			delete(c.vals, k)
		}
	}
	for k, exp := range c.geoExp {
		if !exp.IsZero() && !exp.After(c.now) {
			delete(c.geos, k)
			delete(c.geoExp, k)
		}
	}
}

func (c *MemCache) AddPosition(_ context.Context, bucketKey, memberID string, pos location.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSet != nil {
		return c.FailSet
	}
	bucket, ok := c.geos[bucketKey]
	if !ok {
		bucket = make(map[string]location.Position)
		c.geos[bucketKey] = bucket
	}
	bucket[memberID] = pos
	return nil
}

func (c *MemCache) Positions(_ context.Context, bucketKey string) ([]location.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.geos[bucketKey]))
	for id := range c.geos[bucketKey] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	members := make([]location.Member, 0, len(ids))
	for _, id := range ids {
		members = append(members, location.Member{ID: id, Position: c.geos[bucketKey][id]})
	}
	return members, nil
}

func (c *MemCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vals[key]; ok {
		return true, nil
	}
	if _, ok := c.geos[key]; ok {
		return true, nil
	}
	_, ok := c.zsets[key]
	return ok, nil
}

func (c *MemCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSet != nil {
		return c.FailSet
	}
	if e, ok := c.vals[key]; ok {
		e.expiresAt = c.now.Add(ttl)
		c.vals[key] = e
	}
	if _, ok := c.geos[key]; ok {
		c.geoExp[key] = c.now.Add(ttl)
	}
	return nil
}

func (c *MemCache) Keys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	match := func(k string) {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range c.vals {
		match(k)
	}
	for k := range c.geos {
		match(k)
	}
	for k := range c.zsets {
		match(k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *MemCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSet != nil {
		return c.FailSet
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now.Add(ttl)
	}
	c.vals[key] = e
	return nil
}

func (c *MemCache) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSet != nil {
		return false, c.FailSet
	}
	if _, ok := c.vals[key]; ok {
		return false, nil
	}
	c.vals[key] = entry{value: value}
	return true, nil
}

func (c *MemCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.vals[key]
	if !ok {
		return "", location.ErrMiss
	}
	return e.value, nil
}

func (c *MemCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.vals, k)
		delete(c.geos, k)
		delete(c.geoExp, k)
		delete(c.zsets, k)
	}
	return nil
}

func (c *MemCache) AddScored(_ context.Context, key, member string, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSet != nil {
		return c.FailSet
	}
	zset, ok := c.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		c.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

func (c *MemCache) ScoredSince(_ context.Context, key string, min float64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	type scored struct {
		member string
		score  float64
	}
	var hits []scored
	for member, score := range c.zsets[key] {
		if score >= min {
			hits = append(hits, scored{member, score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		return hits[i].member < hits[j].member
	})
	members := make([]string, 0, len(hits))
	for _, h := range hits {
		members = append(members, h.member)
	}
	return members, nil
}
