// Package rbac resolves the caller of a protected request and checks it against the access policy.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"client-connect/backend/internal/policy/engine"
	"client-connect/backend/internal/server/interceptors"
	"client-connect/backend/internal/user/domain"
)

var (
	// ErrUnauthenticated means no subject is in the context, or the subject no longer exists.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the policy denied the action.
	ErrForbidden = errors.New("not allowed to perform this action")
)

// PrincipalGetter returns a user by username, or (nil, nil) if absent.
type PrincipalGetter interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Authorize loads the context subject, re-reading its roles from the store, and asks the evaluator
// whether it may perform action on target. Returns the caller on success.
func Authorize(ctx context.Context, eval engine.Evaluator, users PrincipalGetter, action, target string) (*domain.User, error) {
	subject, ok := interceptors.GetSubject(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	u, err := users.GetByUsername(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	allowed, err := eval.Allow(ctx, engine.Input{
		Action:  action,
		Subject: u.Username,
		Roles:   u.RoleStrings(),
		Target:  target,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}
	if !allowed {
		return nil, ErrForbidden
	}
	return u, nil
}
