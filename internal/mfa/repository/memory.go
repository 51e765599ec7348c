package repository

import (
	"context"
	"sync"
	"time"

	"client-connect/backend/internal/mfa"
	"client-connect/backend/internal/mfa/domain"
)

// MemoryStore is an in-process Store guarded by a single mutex.
type MemoryStore struct {
	mu        sync.Mutex
	m         map[string]domain.Challenge
	retention time.Duration
	nowF      func() time.Time
}

// NewMemoryStore returns an empty store. Expired challenges are kept for retention so they
// still report expired; Sweep removes them after that.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention < 0 {
		retention = 0
	}
	return &MemoryStore{
		m:         make(map[string]domain.Challenge),
		retention: retention,
		nowF:      time.Now,
	}
}

// Put stores c, replacing any challenge for the same username.
func (s *MemoryStore) Put(_ context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[c.Username] = *c
	return nil
}

// Consume checks and, where the rules say so, removes the challenge for username.
func (s *MemoryStore) Consume(_ context.Context, username, codeHash string, now time.Time, maxAttempts int) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[username]
	if !ok {
		return domain.OutcomeNotFound, nil
	}
	if c.Expired(now) {
		delete(s.m, username)
		return domain.OutcomeExpired, nil
	}
	if !mfa.HashEqual(codeHash, c.CodeHash) {
		c.Attempts++
		if maxAttempts > 0 && c.Attempts >= maxAttempts {
			delete(s.m, username)
		} else {
			s.m[username] = c
		}
		return domain.OutcomeMismatch, nil
	}
	delete(s.m, username)
	return domain.OutcomeVerified, nil
}

// Delete removes the challenge for username.
func (s *MemoryStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, username)
	return nil
}

// Len returns the number of stored challenges, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep removes challenges whose expiry plus retention is before now and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.m {
		if now.After(c.ExpiresAt.Add(s.retention)) {
			delete(s.m, k)
			n++
		}
	}
	return n
}

// RunJanitor sweeps every interval until ctx is done. onSweep, when non-nil, receives the count removed.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.Sweep(s.nowF())
			if onSweep != nil && n > 0 {
				onSweep(n)
			}
		}
	}
}
