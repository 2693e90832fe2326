package repository

import (
	"context"

	"github.com/dip-aaa/web-project-sub002/internal/otp/domain"
)

// Repository defines persistence for OTP challenges, keyed by email.
type Repository interface {
	// Upsert stores c as the only live challenge for c.Email, replacing the code,
	// expiry and send time and resetting the attempt counter.
	Upsert(ctx context.Context, c *domain.Challenge) error
	// GetByEmail returns the live challenge for email, or nil if none exists.
	GetByEmail(ctx context.Context, email string) (*domain.Challenge, error)
	// IncrementAttempts records a wrong code and returns the new attempt count.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	DeleteByEmail(ctx context.Context, email string) error
}
