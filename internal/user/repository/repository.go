package repository

import (
	"context"
	"errors"
	"time"

	"client-connect/backend/internal/user/domain"
)

var (
	// ErrDuplicateUsername is returned by Create when the username or email is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrAdminExists is returned by Create when the user requests ADMIN and another user already holds it.
	ErrAdminExists = errors.New("admin already exists")
)

// Repository defines persistence for users and their role grants.
// Get methods return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// ExistsWithRole reports whether any user holds role.
	ExistsWithRole(ctx context.Context, role domain.RoleName) (bool, error)
	// MissingRoles returns the names in roles that are not in the role catalogue.
	MissingRoles(ctx context.Context, roles []domain.RoleName) ([]domain.RoleName, error)
	// Create persists the user and its role grants atomically. The ADMIN check is repeated
	// inside the same unit so two concurrent admin creations cannot both succeed.
	Create(ctx context.Context, u *domain.User) error
	// UpdatePassword replaces the hash and password_last_set. Returns false when no user has id.
	UpdatePassword(ctx context.Context, id, hash string, setAt time.Time) (bool, error)
}
