package repository

import (
	"context"

	"client-connect/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByActor returns the actor's most recent entries first.
	ListByActor(ctx context.Context, actor string, limit int) ([]*domain.AuditLog, error)
}
