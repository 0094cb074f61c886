// internal/server/handlers/match.go

package handlers

import (
	"encoding/json"
	"net/http"

	"proximate/internal/domain/match"
)

// MatchHandler handles like and match listing requests
type MatchHandler struct {
	engine match.Engine
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(engine match.Engine) *MatchHandler {
	return &MatchHandler{engine: engine}
}

// Like records a like from the caller toward another user and reports
// whether it completed a match.
func (h *MatchHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req struct {
		LikedUserID string `json:"likedUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LikedUserID == "" {
		respondWithError(w, http.StatusBadRequest, "likedUserId is required", nil)
		return
	}
	if req.LikedUserID == userID {
		respondWithError(w, http.StatusBadRequest, "Cannot like yourself", nil)
		return
	}

	result, err := h.engine.Like(r.Context(), userID, req.LikedUserID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to record like", err)
		return
	}

	payload := map[string]string{"status": string(result.Status)}
	if result.MatchedWith != "" {
		payload["matchedWith"] = result.MatchedWith
	}
	respondWithJSON(w, http.StatusOK, payload)
}

// GetMatches returns the caller's active match ids.
func (h *MatchHandler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	matches, err := h.engine.ActiveMatches(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get matches", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}
