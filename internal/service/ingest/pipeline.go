// internal/service/ingest/pipeline.go

package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"proximate/internal/domain/location"
	"proximate/internal/geocell"
)

// PipelineConfig contains configuration for the ingestion pipeline
type PipelineConfig struct {
	// CellPrecision is the geohash length used for bucket cells.
	CellPrecision int

	// MaxEventAge is how old a ping may be before it is dropped.
	MaxEventAge time.Duration
}

// Pipeline validates location pings and indexes them into the
// spatial-temporal cache. Schema and freshness failures drop the single
// message; cache failures abort the batch so the transport redelivers it.
type Pipeline struct {
	cache  location.Cache
	zone   *time.Location
	config PipelineConfig
	now    func() time.Time
}

// NewPipeline creates an ingestion pipeline. zone is the service's designated
// time zone; every bucket stamp is computed in it.
func NewPipeline(cache location.Cache, zone *time.Location, config PipelineConfig) *Pipeline {
	if config.CellPrecision == 0 {
		config.CellPrecision = geocell.Precision
	}
	if config.MaxEventAge == 0 {
		config.MaxEventAge = location.MaxEventAge
	}
	return &Pipeline{
		cache:  cache,
		zone:   zone,
		config: config,
		now:    time.Now,
	}
}

// Process validates and indexes a batch of raw messages, returning how many
// were accepted. A returned error means the cache rejected a write and the
// batch must not be acknowledged; accepted messages up to that point were
// indexed and are safe to redeliver because indexing is idempotent.
func (p *Pipeline) Process(ctx context.Context, raws [][]byte) (int, error) {
	accepted := 0
	for _, raw := range raws {
		event, err := p.validate(raw)
		if err != nil {
			log.Printf("Dropping location message: %v", err)
			continue
		}
		if err := p.index(ctx, event); err != nil {
			return accepted, err
		}
		accepted++
	}
	return accepted, nil
}

// validate checks schema, freshness and zone consistency, producing the
// domain event.
func (p *Pipeline) validate(raw []byte) (location.Event, error) {
	m, err := decodeMessage(raw)
	if err != nil {
		return location.Event{}, err
	}

	observed, err := parseEventTime(m.UserDateTime)
	if err != nil {
		return location.Event{}, err
	}

	// The producer stamps pings in the service zone. A mismatched offset
	// means a misconfigured client or a replay from another region.
	_, gotOffset := observed.Zone()
	_, wantOffset := observed.In(p.zone).Zone()
	if gotOffset != wantOffset {
		return location.Event{}, fmt.Errorf("zone offset %d does not match service zone %s", gotOffset, p.zone)
	}

	now := p.now()
	if !observed.Before(now) {
		return location.Event{}, fmt.Errorf("userDateTime %s is not in the past", m.UserDateTime)
	}
	if now.Sub(observed) > p.config.MaxEventAge {
		return location.Event{}, fmt.Errorf("userDateTime %s is older than %s", m.UserDateTime, p.config.MaxEventAge)
	}

	lat, lon := *m.Latitude, *m.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return location.Event{}, fmt.Errorf("coordinate out of range: lat=%v lon=%v", lat, lon)
	}

	return location.Event{
		UserID:     m.UserID,
		Latitude:   lat,
		Longitude:  lon,
		ObservedAt: observed,
	}, nil
}

// index writes one event into its bucket. The expiry is set only when this
// write created the bucket, so later members never extend its lifetime.
func (p *Pipeline) index(ctx context.Context, event location.Event) error {
	local := event.ObservedAt.In(p.zone)
	stamp := location.BucketStamp(local)

	cell, err := geocell.Encode(event.Latitude, event.Longitude, p.config.CellPrecision)
	if err != nil {
		return fmt.Errorf("encode cell: %w", err)
	}
	bucketKey := location.BucketKey(cell, stamp)

	existed, err := p.cache.Exists(ctx, bucketKey)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucketKey, err)
	}

	member := location.MemberID(event.UserID, local)
	pos := location.Position{Latitude: event.Latitude, Longitude: event.Longitude}
	if err := p.cache.AddPosition(ctx, bucketKey, member, pos); err != nil {
		return fmt.Errorf("index %s into %s: %w", member, bucketKey, err)
	}

	if !existed {
		ttl := location.BucketTTL(stamp, p.now().In(p.zone))
		if err := p.cache.Expire(ctx, bucketKey, ttl); err != nil {
			return fmt.Errorf("expire bucket %s: %w", bucketKey, err)
		}
	}
	return nil
}
