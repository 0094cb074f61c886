package location

import (
	"fmt"
	"strings"
	"time"
)

// Event is a single user location ping after schema validation.
// Events are immutable; re-ingesting one is safe because the bucket member
// identity derived from it is stable.
type Event struct {
	UserID     string
	Latitude   float64
	Longitude  float64
	ObservedAt time.Time
}

// Position is a coordinate pair in degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Member is one positioned entry of a spatial-temporal bucket.
type Member struct {
	ID       string
	Position Position
}

const (
	// BucketWindow is the temporal width of one bucket.
	BucketWindow = 5 * time.Minute

	// DefaultBucketTTL is the fallback lifetime when the nominal expiry
	// computation comes out non-positive.
	DefaultBucketTTL = time.Hour

	// MinRelationTTL is the floor for nearby-relationship lifetimes.
	MinRelationTTL = 15 * time.Minute

	// MaxEventAge is how old an event may be before ingestion drops it.
	MaxEventAge = time.Hour
)

// BucketStamp floors t to its 5-minute boundary, formatted HH:mm.
func BucketStamp(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), (t.Minute()/5)*5)
}

// MemberID builds the composite bucket member identity for a user pinging at
// t. One member per user and minute keeps re-ingestion idempotent.
func MemberID(userID string, t time.Time) string {
	return fmt.Sprintf("%s:%02d:%02d", userID, t.Hour(), t.Minute())
}

// SplitMember returns the base user id and HH:mm stamp carried by a member
// identity. User ids must not contain ':'.
func SplitMember(member string) (userID, stamp string, ok bool) {
	parts := strings.Split(member, ":")
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[1] + ":" + parts[2], true
}

// StampExpiry anchors an HH:mm stamp to now's calendar day and returns the
// instant one hour past it. A stamp written just before midnight and
// evaluated just after lands on the new day, so its expiry comes out almost
// a day ahead instead of minutes; relationships spanning that boundary live
// longer than their buckets.
func StampExpiry(stamp string, now time.Time) (time.Time, error) {
	hm, err := time.Parse("15:04", stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stamp %q: %w", stamp, err)
	}
	anchored := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	return anchored.Add(time.Hour), nil
}

// BucketTTL returns how long a freshly created bucket lives: until one hour
// past its nominal clock time, never non-positive.
func BucketTTL(stamp string, now time.Time) time.Duration {
	expiry, err := StampExpiry(stamp, now)
	if err != nil {
		return DefaultBucketTTL
	}
	ttl := expiry.Sub(now)
	if ttl <= 0 {
		return DefaultBucketTTL
	}
	return ttl
}

// RelationTTL bounds a nearby relationship by the shorter remaining bucket
// lifetime of the two stamps, floored at MinRelationTTL.
func RelationTTL(stampA, stampB string, now time.Time) time.Duration {
	expiryA, errA := StampExpiry(stampA, now)
	expiryB, errB := StampExpiry(stampB, now)
	if errA != nil || errB != nil {
		return DefaultBucketTTL
	}
	expiry := expiryA
	if expiryB.Before(expiry) {
		expiry = expiryB
	}
	ttl := expiry.Sub(now)
	if ttl < MinRelationTTL {
		return MinRelationTTL
	}
	return ttl
}
