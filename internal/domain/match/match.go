package match

import (
	"context"
	"time"
)

// Status is the outcome of a like call.
type Status string

const (
	// StatusPending means the like was recorded and awaits reciprocation.
	StatusPending Status = "pending"

	// StatusMatched means the like completed a mutual pair.
	StatusMatched Status = "matched"
)

// LikeResult reports what a like call produced.
type LikeResult struct {
	Status Status

	// MatchedWith is set when Status is StatusMatched.
	MatchedWith string
}

const (
	// LikeTTL is how long an unreciprocated like stays active.
	LikeTTL = time.Hour

	// Lifetime is how long a confirmed match stays active.
	Lifetime = 24 * time.Hour
)

// Engine runs the mutual-consent like/match state machine.
type Engine interface {
	// Like records that userID likes likedUserID, promoting to a match when
	// the reverse like is already active.
	Like(ctx context.Context, userID, likedUserID string) (LikeResult, error)

	// ActiveMatches returns the ids of userID's unexpired matches.
	ActiveMatches(ctx context.Context, userID string) ([]string, error)
}

// LikeKey builds the directional like marker key. Likes share the scanner's
// "nearby:" namespace: value "true" is an active like, "false" a provisional
// "liked you, unconfirmed" marker, "1" a plain proximity relationship.
func LikeKey(likerID, likedID string) string {
	return "nearby:" + likerID + ":" + likedID
}

// MatchesKey builds the per-user sorted match structure key.
func MatchesKey(userID string) string {
	return "matches:" + userID
}
