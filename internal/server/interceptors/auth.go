// Package interceptors holds the HTTP middleware that authenticates callers and records requests.
package interceptors

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"client-connect/backend/internal/platform/httpx"
	"client-connect/backend/internal/security"
)

const bearerPrefix = "bearer "

// TokenValidator resolves an access token to its subject.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// Problem codes written by RequireBearer.
const (
	CodeTokenMissing = "TOKEN_MISSING"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenExpired = "TOKEN_EXPIRED"
)

// RequireBearer returns middleware that validates the Bearer access token from the Authorization
// header and stores its subject in the request context. Requests without a valid token get 401.
func RequireBearer(tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpx.Problem(w, http.StatusUnauthorized, CodeTokenMissing, "missing or invalid authorization")
				return
			}
			subject, err := tokens.Validate(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				switch {
				case errors.Is(err, security.ErrTokenExpired):
					httpx.Problem(w, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
				case errors.Is(err, security.ErrTokenInvalid):
					httpx.Problem(w, http.StatusUnauthorized, CodeTokenInvalid, "access token invalid")
				default:
					logger.Error("validate access token", zap.Error(err))
					httpx.Problem(w, http.StatusInternalServerError, httpx.CodeInternal, "")
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// extractBearer returns the token of an "Authorization: Bearer <token>" value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
