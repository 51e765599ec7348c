package service

import (
	"context"
	"errors"
	"time"

	"client-connect/backend/internal/security"
	userdomain "client-connect/backend/internal/user/domain"
)

// DefaultPasswordMaxAge is how long a password stays usable after it was last set.
const DefaultPasswordMaxAge = 90 * 24 * time.Hour

var (
	// ErrInvalidCredentials is returned for an unknown username and for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordExpired is returned when the password is older than the configured maximum age.
	ErrPasswordExpired = errors.New("password expired, please change your password")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// CredentialVerifier checks a username/password pair against the stored bcrypt hash.
type CredentialVerifier struct {
	users  UserRepo
	hasher *security.Hasher
}

// NewCredentialVerifier returns a verifier over users.
func NewCredentialVerifier(users UserRepo, hasher *security.Hasher) *CredentialVerifier {
	return &CredentialVerifier{users: users, hasher: hasher}
}

// Verify returns the principal when password matches. Unknown usernames still pay for a bcrypt
// comparison so both failure paths look the same to the caller.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*userdomain.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		v.hasher.CompareDummy([]byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// PasswordPolicy rejects passwords older than MaxAge.
type PasswordPolicy struct {
	maxAge time.Duration
	now    func() time.Time
}

// NewPasswordPolicy returns a policy with maxAge; non-positive uses DefaultPasswordMaxAge.
func NewPasswordPolicy(maxAge time.Duration) *PasswordPolicy {
	if maxAge <= 0 {
		maxAge = DefaultPasswordMaxAge
	}
	return &PasswordPolicy{maxAge: maxAge, now: time.Now}
}

// CheckFreshness returns ErrPasswordExpired when passwordLastSet + maxAge is in the past.
// A principal with no passwordLastSet never expires.
func (p *PasswordPolicy) CheckFreshness(u *userdomain.User) error {
	if u.PasswordLastSet == nil {
		return nil
	}
	if p.now().After(u.PasswordLastSet.Add(p.maxAge)) {
		return ErrPasswordExpired
	}
	return nil
}
