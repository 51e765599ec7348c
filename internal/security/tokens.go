package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTTL is the access token lifetime used when none is configured.
const DefaultAccessTTL = 30 * time.Minute

var (
	// ErrTokenInvalid is returned when a token is malformed or its signature does not verify.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when a correctly signed token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// TokenIssuer issues and validates HS256 access tokens carrying only sub, iat and exp.
// There is no revocation list; expiry is the only invalidation mechanism.
type TokenIssuer struct {
	secrets SecretProvider
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenIssuer returns a TokenIssuer signing with the secret from secrets.
// A non-positive ttl falls back to DefaultAccessTTL.
func NewTokenIssuer(secrets SecretProvider, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &TokenIssuer{secrets: secrets, ttl: ttl, now: time.Now}
}

// TTL returns the access token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// IssueAccess signs an access token for subject, valid from now for the configured TTL.
func (i *TokenIssuer) IssueAccess(ctx context.Context, subject string) (token string, expiresAt time.Time, err error) {
	key, err := i.secrets.SigningSecret(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing secret: %w", err)
	}
	now := i.now().UTC().Truncate(time.Second)
	expiresAt = now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate verifies the signature, then the expiry, and returns the subject.
// Returns ErrTokenInvalid or ErrTokenExpired; a failing SecretProvider is returned as-is.
func (i *TokenIssuer) Validate(ctx context.Context, tokenString string) (string, error) {
	var secretErr error
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		key, err := i.secrets.SigningSecret(ctx)
		if err != nil {
			secretErr = err
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case secretErr != nil:
		return "", fmt.Errorf("signing secret: %w", secretErr)
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", ErrTokenInvalid
	}
	if claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
