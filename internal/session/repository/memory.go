package repository

import (
	"context"
	"sync"
	"time"

	"client-connect/backend/internal/session/domain"
)

// MemoryRepository is a mutex-guarded Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu     sync.Mutex
	byUser map[string]domain.RefreshToken
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUser: make(map[string]domain.RefreshToken)}
}

func (r *MemoryRepository) GetByUserID(_ context.Context, userID string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *MemoryRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byUser {
		if t.TokenHash == tokenHash {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byUser[t.UserID]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	}
	stored := *t
	stored.Token = ""
	r.byUser[t.UserID] = stored
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, t := range r.byUser {
		if t.ID == id {
			delete(r.byUser, userID)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for userID, t := range r.byUser {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.byUser, userID)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}
