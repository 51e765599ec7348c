package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// refreshTokenBytes is the entropy of an opaque refresh token (256 bits).
const refreshTokenBytes = 32

// GenerateRefreshToken returns a new opaque refresh token from crypto/rand, hex-encoded.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshToken returns a SHA-256 hash of the refresh token string, hex-encoded.
// Used for storing and looking up refresh tokens without storing the raw token.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash. Returns true only if they match.
func RefreshTokenHashEqual(providedToken, storedHash string) bool {
	if providedToken == "" || storedHash == "" {
		return false
	}
	providedHash := HashRefreshToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
