package location

import "strings"

// Cache key layout. Bucket keys partition the spatial index by geocell and
// 5-minute stamp. Nearby keys record one ordered pair per discovered
// relationship; the match engine writes its like markers into the same
// "nearby:" namespace, so the value distinguishes the two ("1" relationship,
// "true"/"false" like).
const (
	bucketPrefix = "location:"
	nearbyPrefix = "nearby:"
)

// BucketKey builds the spatial-temporal partition key for a cell and stamp.
func BucketKey(cell, stamp string) string {
	return bucketPrefix + cell + ":" + stamp
}

// BucketPattern matches every live bucket key.
func BucketPattern() string {
	return bucketPrefix + "*"
}

// CellPattern matches every live bucket of one geocell across time stamps.
func CellPattern(cell string) string {
	return bucketPrefix + cell + ":*"
}

// SplitBucketKey extracts the geocell and HH:mm stamp from a bucket key.
func SplitBucketKey(key string) (cell, stamp string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0]+":" != bucketPrefix {
		return "", "", false
	}
	return parts[1], parts[2] + ":" + parts[3], true
}

// NearbyKey builds the ordered-pair relationship key.
func NearbyKey(userID, otherID string) string {
	return nearbyPrefix + userID + ":" + otherID
}

// NearbyPattern matches every relationship (and like marker) rooted at userID.
func NearbyPattern(userID string) string {
	return nearbyPrefix + userID + ":*"
}

// OtherFromNearbyKey extracts the second user id from a nearby key.
func OtherFromNearbyKey(key string) (string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0]+":" != nearbyPrefix {
		return "", false
	}
	return parts[2], true
}
