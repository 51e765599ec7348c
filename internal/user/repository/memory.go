package repository

import (
	"context"
	"sync"
	"time"

	"client-connect/backend/internal/user/domain"
)

// MemoryRepository is a mutex-guarded in-process Repository used when no database is configured.
// Create holds the lock across the ADMIN check and the insert.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.User
	byName map[string]string
	emails map[string]string
	roles  map[domain.RoleName]bool
}

// NewMemoryRepository returns an empty repository whose role catalogue holds roles
// (ADMIN and USER when none are given).
func NewMemoryRepository(roles ...domain.RoleName) *MemoryRepository {
	if len(roles) == 0 {
		roles = []domain.RoleName{domain.RoleAdmin, domain.RoleUser}
	}
	catalogue := make(map[domain.RoleName]bool, len(roles))
	for _, r := range roles {
		catalogue[r] = true
	}
	return &MemoryRepository{
		byID:   make(map[string]*domain.User),
		byName: make(map[string]string),
		emails: make(map[string]string),
		roles:  catalogue,
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[username]
	if !ok {
		return nil, nil
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) ExistsWithRole(_ context.Context, role domain.RoleName) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.existsWithRoleLocked(role), nil
}

func (r *MemoryRepository) existsWithRoleLocked(role domain.RoleName) bool {
	for _, u := range r.byID {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) MissingRoles(_ context.Context, roles []domain.RoleName) ([]domain.RoleName, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []domain.RoleName
	for _, role := range roles {
		if !r.roles[role] {
			missing = append(missing, role)
		}
	}
	return missing, nil
}

func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[u.Username]; ok {
		return ErrDuplicateUsername
	}
	if _, ok := r.emails[u.Email]; ok {
		return ErrDuplicateUsername
	}
	if u.HasRole(domain.RoleAdmin) && r.existsWithRoleLocked(domain.RoleAdmin) {
		return ErrAdminExists
	}
	c := cloneUser(u)
	r.byID[c.ID] = c
	r.byName[c.Username] = c.ID
	r.emails[c.Email] = c.ID
	return nil
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id, hash string, setAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	t := setAt
	u.PasswordLastSet = &t
	u.UpdatedAt = setAt
	return true, nil
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]domain.RoleName(nil), u.Roles...)
	if u.PasswordLastSet != nil {
		t := *u.PasswordLastSet
		c.PasswordLastSet = &t
	}
	return &c
}
