package user

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports an absent user record.
var ErrNotFound = errors.New("user not found")

// Record is the persisted user profile document, keyed by id.
type Record struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Gender           string    `json:"gender,omitempty"`
	Bio              string    `json:"bio,omitempty"`
	DateOfBirth      string    `json:"dateOfBirth,omitempty"`
	ProfileImagePath string    `json:"profileImagePath,omitempty"`
	Enabled          bool      `json:"enabled"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Store is the persistent user record store.
type Store interface {
	// FindByID returns the record for id or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Record, error)

	// Save upserts a record, stamping CreatedAt/UpdatedAt as needed.
	Save(ctx context.Context, rec *Record) error
}
