// internal/service/match/engine.go

package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"proximate/internal/domain/location"
	"proximate/internal/domain/match"
)

// EngineConfig contains configuration for the match engine
type EngineConfig struct {
	// EventsTopic is the bus subject for confirmed-match events.
	EventsTopic string
}

// MatchEngine runs the mutual-consent like/match state machine on top of the
// shared cache.
type MatchEngine struct {
	cache    location.Cache
	eventBus *nats.Conn
	config   EngineConfig
	now      func() time.Time
}

var _ match.Engine = (*MatchEngine)(nil)

// NewMatchEngine creates an engine. eventBus may be nil, in which case match
// events are not published.
func NewMatchEngine(cache location.Cache, eventBus *nats.Conn, config EngineConfig) *MatchEngine {
	return &MatchEngine{
		cache:    cache,
		eventBus: eventBus,
		config:   config,
		now:      time.Now,
	}
}

// Like records that userID likes likedUserID and promotes the pair to a
// match when the reverse like is already active.
//
// The forward write and the reverse read are deliberately two separate cache
// calls, not a transaction. Two users liking each other in the same instant
// can each read the other's pre-like state and both come back pending; the
// next Like call from either side resolves the pair, and until then both
// directional markers sit in the cache under their hour lifetime.
func (e *MatchEngine) Like(ctx context.Context, userID, likedUserID string) (match.LikeResult, error) {
	likeKey := match.LikeKey(userID, likedUserID)
	reverseKey := match.LikeKey(likedUserID, userID)

	if err := e.cache.Set(ctx, likeKey, "true", match.LikeTTL); err != nil {
		return match.LikeResult{}, fmt.Errorf("record like: %w", err)
	}

	reverse, err := e.cache.Get(ctx, reverseKey)
	if err != nil && !errors.Is(err, location.ErrMiss) {
		return match.LikeResult{}, fmt.Errorf("check reverse like: %w", err)
	}

	if reverse == "true" {
		return e.confirm(ctx, userID, likedUserID, likeKey, reverseKey)
	}

	// Provisional marker on the reverse direction: liked, unconfirmed.
	if err := e.cache.Set(ctx, reverseKey, "false", match.LikeTTL); err != nil {
		return match.LikeResult{}, fmt.Errorf("record provisional like: %w", err)
	}
	return match.LikeResult{Status: match.StatusPending}, nil
}

// confirm consumes both like markers and writes the match into both users'
// sorted match structures, scored by expiry.
func (e *MatchEngine) confirm(ctx context.Context, userID, likedUserID, likeKey, reverseKey string) (match.LikeResult, error) {
	if err := e.cache.Delete(ctx, likeKey, reverseKey); err != nil {
		return match.LikeResult{}, fmt.Errorf("consume likes: %w", err)
	}

	expiry := float64(e.now().Add(match.Lifetime).Unix())
	if err := e.cache.AddScored(ctx, match.MatchesKey(userID), likedUserID, expiry); err != nil {
		return match.LikeResult{}, fmt.Errorf("record match: %w", err)
	}
	if err := e.cache.AddScored(ctx, match.MatchesKey(likedUserID), userID, expiry); err != nil {
		return match.LikeResult{}, fmt.Errorf("record match: %w", err)
	}

	e.publishMatchEvent(userID, likedUserID)
	return match.LikeResult{Status: match.StatusMatched, MatchedWith: likedUserID}, nil
}

// ActiveMatches returns the ids of userID's unexpired matches. Expired
// entries are filtered by score, not removed; the structure is rewritten on
// the next match anyway.
func (e *MatchEngine) ActiveMatches(ctx context.Context, userID string) ([]string, error) {
	members, err := e.cache.ScoredSince(ctx, match.MatchesKey(userID), float64(e.now().Unix()))
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return members, nil
}

func (e *MatchEngine) publishMatchEvent(userID, likedUserID string) {
	if e.eventBus == nil {
		return
	}
	event := map[string]interface{}{
		"users":     []string{userID, likedUserID},
		"matchedAt": e.now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling match event: %v", err)
		return
	}
	if err := e.eventBus.Publish(e.config.EventsTopic, data); err != nil {
		log.Printf("Error publishing match event: %v", err)
	}
}
