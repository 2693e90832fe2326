package repository

import (
	"context"

	"github.com/dip-aaa/web-project-sub002/internal/identity/domain"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
)

// Repository defines persistence for identities. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// SignupStore creates a pending user together with its local identity.
type SignupStore interface {
	CreatePendingUser(ctx context.Context, u *userdomain.User, i *domain.Identity) error
}
