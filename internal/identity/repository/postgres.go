package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dip-aaa/web-project-sub002/internal/db"
	"github.com/dip-aaa/web-project-sub002/internal/identity/domain"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
	userrepo "github.com/dip-aaa/web-project-sub002/internal/user/repository"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GetByUserAndProvider returns the identity for the given user and provider, or nil if not found.
func (r *PostgresRepository) GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	var (
		i    domain.Identity
		prov string
		hash sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_id, password_hash, created_at
		 FROM identities WHERE user_id = $1 AND provider = $2`,
		userID, string(provider)).
		Scan(&i.ID, &i.UserID, &prov, &i.ProviderID, &hash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Provider = domain.IdentityProvider(prov)
	i.PasswordHash = hash.String
	return &i, nil
}

const insertIdentity = `INSERT INTO identities (id, user_id, provider, provider_id, password_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx, insertIdentity,
		i.ID, i.UserID, string(i.Provider), i.ProviderID, db.NullString(i.PasswordHash), i.CreatedAt)
	return err
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE identities SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	return err
}

// CreatePendingUser inserts u and its identity in one transaction.
func (r *PostgresRepository) CreatePendingUser(ctx context.Context, u *userdomain.User, i *domain.Identity) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := userrepo.NewPostgresRepository(tx).Create(ctx, u); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertIdentity,
			i.ID, i.UserID, string(i.Provider), i.ProviderID, db.NullString(i.PasswordHash), i.CreatedAt)
		return err
	})
}
