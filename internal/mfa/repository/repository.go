package repository

import (
	"context"
	"time"

	"client-connect/backend/internal/mfa/domain"
)

// DefaultRetention is how long an expired challenge is kept before a sweep or TTL removes it.
const DefaultRetention = time.Hour

// Store holds OTP challenges keyed by username. Implementations must make Consume atomic
// per username so a code can be redeemed at most once.
type Store interface {
	// Put stores c, replacing any challenge for the same username.
	Put(ctx context.Context, c *domain.Challenge) error
	// Consume checks codeHash against the stored challenge at time now:
	// missing → OutcomeNotFound; expired → deleted, OutcomeExpired; different hash → attempt counted,
	// deleted once maxAttempts (>0) is reached, OutcomeMismatch; equal → deleted, OutcomeVerified.
	Consume(ctx context.Context, username, codeHash string, now time.Time, maxAttempts int) (domain.Outcome, error)
	// Delete removes the challenge for username if present.
	Delete(ctx context.Context, username string) error
}
