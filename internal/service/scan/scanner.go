// internal/service/scan/scanner.go

package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"proximate/internal/domain/location"
	"proximate/internal/domain/notify"
	"proximate/internal/geocell"
)

// ScannerConfig contains configuration for the proximity scanner
type ScannerConfig struct {
	// ScanInterval is how often a full scan cycle runs.
	ScanInterval time.Duration

	// RadiusKm is the proximity threshold between two positions.
	RadiusKm float64

	// CellPrecision is the geohash length of the bucket cells.
	CellPrecision int

	// MaxConcurrentReads bounds parallel bucket fetches per cycle.
	MaxConcurrentReads int

	// EventsTopic is the bus subject for nearby-discovery events.
	EventsTopic string
}

// ProximityScanner periodically sweeps the spatial-temporal cache, pairs
// users within the proximity radius and materializes TTL-bounded nearby
// relationships.
type ProximityScanner struct {
	cache    location.Cache
	notifier notify.Notifier
	eventBus *nats.Conn
	config   ScannerConfig
	zone     *time.Location
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var _ location.Scanner = (*ProximityScanner)(nil)

// NewProximityScanner creates a scanner. eventBus may be nil, in which case
// discovery events are not published.
func NewProximityScanner(
	cache location.Cache,
	notifier notify.Notifier,
	eventBus *nats.Conn,
	zone *time.Location,
	config ScannerConfig,
) *ProximityScanner {
	if config.CellPrecision == 0 {
		config.CellPrecision = geocell.Precision
	}
	if config.MaxConcurrentReads == 0 {
		config.MaxConcurrentReads = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProximityScanner{
		cache:    cache,
		notifier: notifier,
		eventBus: eventBus,
		config:   config,
		zone:     zone,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the periodic scan loop.
func (s *ProximityScanner) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *ProximityScanner) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ScanOnce(s.ctx); err != nil {
				log.Printf("Error scanning for nearby users: %v", err)
			}
		}
	}
}

// Stop signals the loop to finish its in-flight cycle and waits for it with
// the caller's deadline.
func (s *ProximityScanner) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// snapshot is one cycle's consistent view of the live buckets. All bucket
// reads complete before any pairing starts, so every user is compared against
// the same picture of the world.
type snapshot struct {
	// positions collects every observed coordinate per bucket member.
	positions map[string][]location.Position

	// cellMembers indexes bucket members by their bucket's geocell.
	cellMembers map[string]map[string]struct{}
}

// ScanOnce runs a single scan cycle and returns the user -> nearby-users
// mapping it discovered. Individual bucket read failures and relationship
// write failures are logged and skipped; only the initial key enumeration
// can fail the cycle.
func (s *ProximityScanner) ScanOnce(ctx context.Context) (map[string][]string, error) {
	keys, err := s.cache.Keys(ctx, location.BucketPattern())
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	snap, err := s.collect(ctx, keys)
	if err != nil {
		return nil, err
	}

	// Group members by base user so a user observed in several minutes of
	// the window is processed, and notified, exactly once per cycle.
	type observation struct {
		stamp     string
		positions []location.Position
	}
	byUser := make(map[string][]observation)
	for member, positions := range snap.positions {
		userID, stamp, ok := location.SplitMember(member)
		if !ok {
			log.Printf("Skipping malformed bucket member %q", member)
			continue
		}
		byUser[userID] = append(byUser[userID], observation{stamp: stamp, positions: positions})
	}
	userIDs := make([]string, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	result := make(map[string][]string)
	for _, userID := range userIDs {
		nearby := map[string]struct{}{}
		created := 0
		for _, obs := range byUser[userID] {
			for _, pos := range obs.positions {
				created += s.pairAround(ctx, snap, userID, obs.stamp, pos, nearby)
			}
		}

		if len(nearby) > 0 {
			ids := make([]string, 0, len(nearby))
			for id := range nearby {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			result[userID] = ids
		}
		if created > 0 {
			s.announce(ctx, userID, created)
		}
	}

	return result, nil
}

// collect reads every bucket in parallel and aggregates the snapshot.
// A failed bucket read drops that bucket from the cycle, nothing more.
func (s *ProximityScanner) collect(ctx context.Context, keys []string) (*snapshot, error) {
	snap := &snapshot{
		positions:   make(map[string][]location.Position),
		cellMembers: make(map[string]map[string]struct{}),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrentReads)

	for _, key := range keys {
		cell, _, ok := location.SplitBucketKey(key)
		if !ok {
			continue
		}
		key := key
		g.Go(func() error {
			members, err := s.cache.Positions(gctx, key)
			if err != nil {
				log.Printf("Error reading bucket %s: %v", key, err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, m := range members {
				snap.positions[m.ID] = append(snap.positions[m.ID], m.Position)
				if snap.cellMembers[cell] == nil {
					snap.cellMembers[cell] = make(map[string]struct{})
				}
				snap.cellMembers[cell][m.ID] = struct{}{}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// pairAround compares one observed position against every member in the
// position's cell and its eight neighbors, materializing a relationship for
// each pair within the radius. It returns how many relationships this call
// created, and records every in-range user id into nearby.
func (s *ProximityScanner) pairAround(
	ctx context.Context,
	snap *snapshot,
	userID, stamp string,
	pos location.Position,
	nearby map[string]struct{},
) int {
	cell, err := geocell.Encode(pos.Latitude, pos.Longitude, s.config.CellPrecision)
	if err != nil {
		log.Printf("Error encoding cell for %s: %v", userID, err)
		return 0
	}
	regions := append(geocell.Neighbors(cell), cell)

	created := 0
	for _, region := range regions {
		for other := range snap.cellMembers[region] {
			otherID, otherStamp, ok := location.SplitMember(other)
			if !ok || otherID == userID {
				continue
			}
			for _, otherPos := range snap.positions[other] {
				if haversineKm(pos, otherPos) > s.config.RadiusKm {
					continue
				}
				nearby[otherID] = struct{}{}
				if s.materialize(ctx, userID, otherID, stamp, otherStamp) {
					created++
				}
				break
			}
		}
	}
	return created
}

// materialize creates the directional relationship key unless something
// already lives there (an earlier cycle's relationship or a like marker).
// Reports whether this call created it.
func (s *ProximityScanner) materialize(ctx context.Context, userID, otherID, stamp, otherStamp string) bool {
	key := location.NearbyKey(userID, otherID)
	createdNow, err := s.cache.SetIfAbsent(ctx, key, "1")
	if err != nil {
		log.Printf("Error recording relationship %s: %v", key, err)
		return false
	}
	if !createdNow {
		return false
	}

	ttl := location.RelationTTL(stamp, otherStamp, s.now().In(s.zone))
	if err := s.cache.Expire(ctx, key, ttl); err != nil {
		log.Printf("Error expiring relationship %s: %v", key, err)
	}
	return true
}

// announce delivers the per-cycle discovery summary to the user and, when a
// bus is wired, publishes the discovery event. Both are best effort.
func (s *ProximityScanner) announce(ctx context.Context, userID string, count int) {
	message := fmt.Sprintf("%d new users nearby", count)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, userID, message); err != nil {
			log.Printf("Error notifying %s: %v", userID, err)
		}
	}

	if s.eventBus == nil {
		return
	}
	event := map[string]interface{}{
		"userId":         userID,
		"newNearbyCount": count,
		"discoveredAt":   s.now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling discovery event: %v", err)
		return
	}
	if err := s.eventBus.Publish(s.config.EventsTopic, data); err != nil {
		log.Printf("Error publishing discovery event: %v", err)
	}
}

// NearbyUsers returns the ids currently recorded as near userID, including
// pairs carrying like markers, since those share the relationship namespace.
func (s *ProximityScanner) NearbyUsers(ctx context.Context, userID string) ([]string, error) {
	keys, err := s.cache.Keys(ctx, location.NearbyPattern(userID))
	if err != nil {
		return nil, fmt.Errorf("list relationships for %s: %w", userID, err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if other, ok := location.OtherFromNearbyKey(key); ok {
			ids = append(ids, other)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// haversineKm computes the great-circle distance between two positions in
// kilometers.
func haversineKm(a, b location.Position) float64 {
	const earthRadiusKm = 6371.0

	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
