package repository

import (
	"context"
	"time"

	"github.com/dip-aaa/web-project-sub002/internal/session/domain"
)

// Repository defines persistence for sessions. GetByID returns (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllSessionsByUser(ctx context.Context, userID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
}
