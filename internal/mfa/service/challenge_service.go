// Package service issues and verifies OTP login challenges.
package service

import (
	"context"
	"errors"
	"time"

	"client-connect/backend/internal/mfa"
	"client-connect/backend/internal/mfa/domain"
	"client-connect/backend/internal/mfa/repository"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxAttempts is how many wrong codes a challenge tolerates before it is discarded.
	DefaultMaxAttempts = 5
)

// Sentinel errors for OTP verification; handlers map them to client-visible failure kinds.
var (
	ErrOTPNotFound = errors.New("OTP not found for this user")
	ErrOTPExpired  = errors.New("OTP has expired")
	ErrOTPMismatch = errors.New("invalid OTP")
)

// ChallengeService generates single-use numeric codes keyed by username.
type ChallengeService struct {
	store       repository.Store
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	generate    func() (string, error)
}

// NewChallengeService returns a service over store. Non-positive ttl uses DefaultTTL;
// maxAttempts 0 means unlimited wrong guesses.
func NewChallengeService(store repository.Store, ttl time.Duration, maxAttempts int) *ChallengeService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &ChallengeService{
		store:       store,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
		generate:    mfa.GenerateOTP,
	}
}

// Issue generates a fresh code for username, replacing any unconsumed one.
// The plain code is returned for delivery and is never stored.
func (s *ChallengeService) Issue(ctx context.Context, username string) (code string, expiresAt time.Time, err error) {
	code, err = s.generate()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now().UTC()
	c := &domain.Challenge{
		Username:  username,
		CodeHash:  mfa.HashOTP(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, c); err != nil {
		return "", time.Time{}, err
	}
	return code, c.ExpiresAt, nil
}

// Verify redeems code for username. Returns ErrOTPNotFound, ErrOTPExpired (entry purged) or
// ErrOTPMismatch; on success the challenge is gone.
func (s *ChallengeService) Verify(ctx context.Context, username, code string) error {
	out, err := s.store.Consume(ctx, username, mfa.HashOTP(code), s.now().UTC(), s.maxAttempts)
	if err != nil {
		return err
	}
	switch out {
	case domain.OutcomeVerified:
		return nil
	case domain.OutcomeNotFound:
		return ErrOTPNotFound
	case domain.OutcomeExpired:
		return ErrOTPExpired
	default:
		return ErrOTPMismatch
	}
}

// Discard drops any pending challenge for username, e.g. when the code could not be delivered.
func (s *ChallengeService) Discard(ctx context.Context, username string) error {
	return s.store.Delete(ctx, username)
}
