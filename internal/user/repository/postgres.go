package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"client-connect/backend/internal/db"
	"client-connect/backend/internal/user/domain"
)

const (
	constraintUsername    = "users_username_key"
	constraintEmail       = "users_email_key"
	constraintSingleAdmin = "user_roles_single_admin"
)

const selectUser = `
	SELECT u.id, u.username, u.email, u.password_hash, u.password_last_set, u.created_at, u.updated_at,
	       COALESCE(string_agg(ur.role_name, ',' ORDER BY ur.role_name), '')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
`

// PostgresRepository persists users through database/sql on the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.id = $1 GROUP BY u.id`, id)
}

// GetByUsername returns the user with the given username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.username = $1 GROUP BY u.id`, username)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var (
		u       domain.User
		lastSet sql.NullTime
		roles   string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &lastSet, &u.CreatedAt, &u.UpdatedAt, &roles,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lastSet.Valid {
		t := lastSet.Time.UTC()
		u.PasswordLastSet = &t
	}
	u.Roles = splitRoles(roles)
	return &u, nil
}

// ExistsWithRole reports whether any user holds role.
func (r *PostgresRepository) ExistsWithRole(ctx context.Context, role domain.RoleName) (bool, error) {
	return existsWithRole(ctx, r.db, role)
}

func existsWithRole(ctx context.Context, q db.DBTX, role domain.RoleName) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE role_name = $1)`, string(role)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// MissingRoles returns the requested role names that are absent from the roles table.
func (r *PostgresRepository) MissingRoles(ctx context.Context, roles []domain.RoleName) ([]domain.RoleName, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM roles`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	known := make(map[domain.RoleName]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		known[domain.RoleName(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var missing []domain.RoleName
	for _, role := range roles {
		if !known[role] {
			missing = append(missing, role)
		}
	}
	return missing, nil
}

// Create inserts the user and its role grants in one transaction. The user must have ID set.
// Unique violations are mapped to ErrDuplicateUsername and ErrAdminExists.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if u.HasRole(domain.RoleAdmin) {
			exists, err := existsWithRole(ctx, tx, domain.RoleAdmin)
			if err != nil {
				return err
			}
			if exists {
				return ErrAdminExists
			}
		}
		var lastSet sql.NullTime
		if u.PasswordLastSet != nil {
			lastSet = sql.NullTime{Time: *u.PasswordLastSet, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, email, password_hash, password_last_set, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			u.ID, u.Username, u.Email, u.PasswordHash, lastSet, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return err
		}
		for _, role := range u.Roles {
			if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)`, u.ID, string(role)); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil || errors.Is(err, ErrAdminExists) {
		return err
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case constraintUsername, constraintEmail:
			return ErrDuplicateUsername
		case constraintSingleAdmin:
			return ErrAdminExists
		}
	}
	return fmt.Errorf("db error: %w", err)
}

// UpdatePassword sets password_hash and password_last_set for id. Returns false when no row matched.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, hash string, setAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, password_last_set = $3, updated_at = $3
		WHERE id = $1`, id, hash, setAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func splitRoles(s string) []domain.RoleName {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.RoleName, 0, len(parts))
	for _, p := range parts {
		out = append(out, domain.RoleName(p))
	}
	return out
}
