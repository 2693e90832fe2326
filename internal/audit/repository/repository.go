package repository

import (
	"context"

	"github.com/dip-aaa/web-project-sub002/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
