// internal/server/handlers/location.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"proximate/internal/domain/location"
	"proximate/internal/domain/user"
)

// PingPublisher enqueues a location ping for asynchronous ingestion.
type PingPublisher interface {
	PublishPosition(userID string, lat, lon float64, at time.Time) error
}

// LocationHandler handles location update and nearby-user requests
type LocationHandler struct {
	publisher PingPublisher
	scanner   location.Scanner
	users     user.Store
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(publisher PingPublisher, scanner location.Scanner, users user.Store) *LocationHandler {
	return &LocationHandler{
		publisher: publisher,
		scanner:   scanner,
		users:     users,
	}
}

// UpdateLocation accepts a coordinate pair and queues it for ingestion. The
// response acknowledges receipt, not indexing; the pipeline picks it up from
// the topic.
func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondWithError(w, http.StatusBadRequest, "latitude and longitude are required", nil)
		return
	}
	lat, lon := *req.Latitude, *req.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondWithError(w, http.StatusBadRequest, "Coordinate out of range", nil)
		return
	}

	if err := h.publisher.PublishPosition(userID, lat, lon, time.Now()); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to queue location update", err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"status": "Location received and queued",
	})
}

// GetNearbyUsers returns the full profiles of users currently recorded as
// near the caller. Ids without a stored profile are skipped.
//
// Like markers live in the same "nearby:" keyspace as scanner relationships,
// so a user the caller liked (or was liked by) stays in this list for the
// marker's lifetime even after the co-location entry lapses. Filtering by
// value would hide a still-nearby user the moment someone likes them, which
// is worse than the extra entry.
func (h *LocationHandler) GetNearbyUsers(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	ids, err := h.scanner.NearbyUsers(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get nearby users", err)
		return
	}

	profiles := make([]*user.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := h.users.FindByID(r.Context(), id)
		if errors.Is(err, user.ErrNotFound) {
			continue
		}
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load profiles", err)
			return
		}
		profiles = append(profiles, rec)
	}

	respondWithJSON(w, http.StatusOK, profiles)
}
