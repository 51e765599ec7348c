package repository

import (
	"context"
	"fmt"

	"client-connect/backend/internal/audit/domain"
	"client-connect/backend/internal/db"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor, action, resource, ip, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Actor, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByActor returns up to limit entries for actor, newest first.
func (r *PostgresRepository) ListByActor(ctx context.Context, actor string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor, action, resource, ip, metadata, created_at FROM audit_logs WHERE actor = $1 ORDER BY created_at DESC LIMIT $2`,
		actor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		a := &domain.AuditLog{}
		if err := rows.Scan(&a.ID, &a.Actor, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
