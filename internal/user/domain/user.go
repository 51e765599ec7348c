package domain

import (
	"errors"
	"time"
)

// RoleName names an entry of the role catalogue.
type RoleName string

const (
	// RoleAdmin is the administrator role; at most one user may hold it.
	RoleAdmin RoleName = "ADMIN"
	RoleUser  RoleName = "USER"
)

// User is an authenticating principal: credentials plus role set.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	// PasswordLastSet is nil for accounts that predate password ageing; those never expire.
	PasswordLastSet *time.Time
	Roles           []RoleName
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role RoleName) bool {
	return ContainsRole(u.Roles, role)
}

// ContainsRole reports whether roles contains role.
func ContainsRole(roles []RoleName, role RoleName) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleStrings returns the role names as plain strings.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if len(u.Roles) == 0 {
		return errors.New("at least one role is required")
	}
	return nil
}
