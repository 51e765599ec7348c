package service

import (
	"context"
	"errors"

	"client-connect/backend/internal/user/domain"
)

// ErrAdminAlreadyExists is returned when a creation request asks for ADMIN and an administrator exists.
var ErrAdminAlreadyExists = errors.New("admin already exists")

// RoleLookup reports whether any principal holds a role.
type RoleLookup interface {
	ExistsWithRole(ctx context.Context, role domain.RoleName) (bool, error)
}

// AdminGuard rejects creation of a second administrator. It is a fast pre-check only;
// the repository repeats the check inside the creating transaction.
type AdminGuard struct {
	roles RoleLookup
}

// NewAdminGuard returns a guard backed by roles.
func NewAdminGuard(roles RoleLookup) *AdminGuard {
	return &AdminGuard{roles: roles}
}

// CheckCanCreate returns ErrAdminAlreadyExists if requested contains ADMIN and some principal already holds it.
func (g *AdminGuard) CheckCanCreate(ctx context.Context, requested []domain.RoleName) error {
	if !domain.ContainsRole(requested, domain.RoleAdmin) {
		return nil
	}
	exists, err := g.roles.ExistsWithRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if exists {
		return ErrAdminAlreadyExists
	}
	return nil
}
