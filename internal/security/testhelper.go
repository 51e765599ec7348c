package security

import "strings"

// testSigningSecret is an HS256 key for unit tests only. Do not use in production.
var testSigningSecret = strings.Repeat("test-signing-secret-", 2)

// NewTestTokenIssuer returns a TokenIssuer using the embedded test secret and the default TTL.
// For unit tests only. Callers must not use in production.
func NewTestTokenIssuer() *TokenIssuer {
	return NewTokenIssuer(StaticSecret(testSigningSecret), DefaultAccessTTL)
}
