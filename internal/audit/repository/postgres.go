package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dip-aaa/web-project-sub002/internal/audit/domain"
	"github.com/dip-aaa/web-project-sub002/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const auditColumns = `id, user_id, action, resource, ip, metadata, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s scanner) (*domain.AuditLog, error) {
	var (
		a                 domain.AuditLog
		uid, ip, metadata sql.NullString
	)
	if err := s.Scan(&a.ID, &uid, &a.Action, &a.Resource, &ip, &metadata, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.UserID = uid.String
	a.IP = ip.String
	a.Metadata = metadata.String
	return &a, nil
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	a, err := scanAuditLog(r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, db.NullString(a.UserID), a.Action, a.Resource, db.NullString(a.IP), db.NullString(a.Metadata), a.CreatedAt)
	return err
}
