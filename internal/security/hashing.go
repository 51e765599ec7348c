package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password. Returns the hash as a string suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash using constant-time
// comparison. Returns nil if they match; returns an error (including
// bcrypt.ErrMismatchedHashAndPassword) if they do not or on invalid hash.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// CompareDummy runs a bcrypt comparison at the configured cost against a fixed hash
// so that lookups for unknown usernames take as long as a real password check.
// The result is always a mismatch.
func (h *Hasher) CompareDummy(password []byte) {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.Cost)
		if err == nil {
			h.dummy = b
		}
	})
	if h.dummy == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, password)
}
