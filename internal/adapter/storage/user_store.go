// internal/adapter/storage/user_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"proximate/internal/domain/user"
)

// UserStore implements persistent storage for user profiles
type UserStore struct {
	db *pgxpool.Pool
}

// NewUserStore creates a new user store
func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{
		db: db,
	}
}

// FindByID retrieves a user record by ID
func (s *UserStore) FindByID(ctx context.Context, id string) (*user.Record, error) {
	query := `
		SELECT
			id, email, name, gender, bio, date_of_birth,
			profile_image_path, enabled, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var rec user.Record
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.Email,
		&rec.Name,
		&rec.Gender,
		&rec.Bio,
		&rec.DateOfBirth,
		&rec.ProfileImagePath,
		&rec.Enabled,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %w", err)
	}

	return &rec, nil
}

// Save upserts a user record, assigning an ID and timestamps as needed
func (s *UserStore) Save(ctx context.Context, rec *user.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query := `
		INSERT INTO users (
			id, email, name, gender, bio, date_of_birth,
			profile_image_path, enabled, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10
		)
		ON CONFLICT (id) DO UPDATE
		SET
			email = $2,
			name = $3,
			gender = $4,
			bio = $5,
			date_of_birth = $6,
			profile_image_path = $7,
			enabled = $8,
			updated_at = $10
	`

	_, err := s.db.Exec(
		ctx,
		query,
		rec.ID,
		rec.Email,
		rec.Name,
		rec.Gender,
		rec.Bio,
		rec.DateOfBirth,
		rec.ProfileImagePath,
		rec.Enabled,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}
