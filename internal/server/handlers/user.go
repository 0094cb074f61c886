// internal/server/handlers/user.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"proximate/internal/domain/user"
)

// UserHandler handles profile requests
type UserHandler struct {
	users user.Store
}

// NewUserHandler creates a new user handler
func NewUserHandler(users user.Store) *UserHandler {
	return &UserHandler{users: users}
}

// GetMe returns the caller's own profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	rec, err := h.users.FindByID(r.Context(), UserID(r.Context()))
	if errors.Is(err, user.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load profile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// UpdateMe applies a partial profile update. Only the provided fields change.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req struct {
		Name             *string `json:"name"`
		Gender           *string `json:"gender"`
		Bio              *string `json:"bio"`
		DateOfBirth      *string `json:"dateOfBirth"`
		ProfileImagePath *string `json:"profileImagePath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, user.ErrNotFound) {
		rec = &user.Record{ID: userID, Enabled: true}
	} else if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load profile", err)
		return
	}

	if req.Name != nil {
		rec.Name = *req.Name
	}
	if req.Gender != nil {
		rec.Gender = *req.Gender
	}
	if req.Bio != nil {
		rec.Bio = *req.Bio
	}
	if req.DateOfBirth != nil {
		rec.DateOfBirth = *req.DateOfBirth
	}
	if req.ProfileImagePath != nil {
		rec.ProfileImagePath = *req.ProfileImagePath
	}

	if err := h.users.Save(r.Context(), rec); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}
