package repository

import (
	"context"
	"time"

	"client-connect/backend/internal/session/domain"
)

// Repository defines persistence for refresh tokens, at most one per user.
// Get methods return (nil, nil) when no row matches.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.RefreshToken, error)
	// GetByTokenHash returns the token whose hash matches, with Username populated.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Upsert inserts t or, when the user already has a token, replaces its hash and expiry
	// keeping the existing row id.
	Upsert(ctx context.Context, t *domain.RefreshToken) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes tokens whose expiry is before cutoff and returns how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
