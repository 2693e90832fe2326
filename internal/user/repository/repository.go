package repository

import (
	"context"

	"github.com/dip-aaa/web-project-sub002/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// Update writes the profile fields and status of an existing user.
	Update(ctx context.Context, u *domain.User) error
	// Activate moves a pending user to active. Returns false if the user was not pending.
	Activate(ctx context.Context, id string) (bool, error)
}
