// Package devotp provides an in-memory store for the latest OTP per username, used only when dev OTP
// mode is enabled (GET /dev/otp).
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTP by username for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores otp for username until expiresAt, replacing any earlier code.
	Put(ctx context.Context, username, otp string, expiresAt time.Time)
	// Get returns the otp for username if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, username string) (otp string, expiresAt time.Time, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: time.Now,
	}
}

// Put stores otp for username until expiresAt.
func (s *MemoryStore) Put(_ context.Context, username, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[username] = entry{otp: otp, expiresAt: expiresAt}
}

// Get returns the otp for username if present and not expired.
func (s *MemoryStore) Get(_ context.Context, username string) (string, time.Time, bool) {
	s.mu.RLock()
	e, ok := s.m[username]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, false
	}
	if s.nowF().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.m[username]; ok && cur == e {
			delete(s.m, username)
		}
		s.mu.Unlock()
		return "", time.Time{}, false
	}
	return e.otp, e.expiresAt, true
}
