// Package service manages the lifecycle of refresh tokens: one live token per user,
// rotated in place on every login and purged when found expired.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"client-connect/backend/internal/security"
	"client-connect/backend/internal/session/domain"
	"client-connect/backend/internal/session/repository"
	userdomain "client-connect/backend/internal/user/domain"
)

// DefaultTTL is the refresh token lifetime used when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrRefreshTokenNotFound is returned when no stored token matches the presented value.
	ErrRefreshTokenNotFound = errors.New("refresh token is not in database")
	// ErrRefreshTokenExpired is returned when the token is past its expiry; the record is deleted.
	ErrRefreshTokenExpired = errors.New("refresh token was expired, please make a new signin request")
	// ErrOwnerNotFound is returned by IssueOrRotate when the username does not resolve to a user.
	ErrOwnerNotFound = errors.New("refresh token owner not found")
)

// UserLookup resolves the owning user of a refresh token.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// Manager issues, rotates, finds and expires refresh tokens.
type Manager struct {
	repo     repository.Repository
	users    UserLookup
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewManager returns a Manager. A non-positive ttl uses DefaultTTL.
func NewManager(repo repository.Repository, users UserLookup, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		repo:     repo,
		users:    users,
		ttl:      ttl,
		now:      time.Now,
		generate: security.GenerateRefreshToken,
	}
}

// IssueOrRotate gives username a fresh token value and expiry. An existing record is
// overwritten in place, so any token from an earlier login stops resolving.
// The returned record carries the raw Token.
func (m *Manager) IssueOrRotate(ctx context.Context, username string) (*domain.RefreshToken, error) {
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrOwnerNotFound
	}
	raw, err := m.generate()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()

	existing, err := m.repo.GetByUserID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	t := &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: now,
	}
	if existing != nil {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	}
	t.Token = raw
	t.TokenHash = security.HashRefreshToken(raw)
	t.ExpiresAt = now.Add(m.ttl)
	t.UpdatedAt = now
	if err := m.repo.Upsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// FindByToken returns the record for the raw token value, or nil when none matches.
func (m *Manager) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if token == "" {
		return nil, nil
	}
	t, err := m.repo.GetByTokenHash(ctx, security.HashRefreshToken(token))
	if err != nil || t == nil {
		return nil, err
	}
	if !security.RefreshTokenHashEqual(token, t.TokenHash) {
		return nil, nil
	}
	t.Token = token
	return t, nil
}

// VerifyExpiration returns t unchanged while it is valid. An expired token is deleted and
// ErrRefreshTokenExpired returned. Verification never rotates the token.
func (m *Manager) VerifyExpiration(ctx context.Context, t *domain.RefreshToken) (*domain.RefreshToken, error) {
	if !t.Expired(m.now().UTC()) {
		return t, nil
	}
	if err := m.repo.Delete(ctx, t.ID); err != nil {
		return nil, err
	}
	return nil, ErrRefreshTokenExpired
}

// SweepExpired deletes every expired token and returns how many were removed.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.now().UTC())
}
