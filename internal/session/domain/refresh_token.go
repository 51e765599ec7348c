package domain

import "time"

// RefreshToken is the single live refresh credential of a user. Issuing a new one for the
// same user replaces the value and expiry in place.
type RefreshToken struct {
	ID       string
	UserID   string
	Username string
	// Token is the raw opaque value; only set on the record returned at issuance. Storage keeps TokenHash.
	Token     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the expiry is strictly before now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
