package domain

import "time"

// Challenge is a pending OTP challenge keyed by username. It lives only in the challenge store.
type Challenge struct {
	Username  string
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
	// Attempts counts mismatched verifications so far.
	Attempts int
}

// Expired reports whether now is past the challenge expiry.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Outcome is the result of consuming a challenge.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeNotFound Outcome = "not_found"
	OutcomeExpired  Outcome = "expired"
	OutcomeMismatch Outcome = "mismatch"
)
