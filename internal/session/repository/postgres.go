package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dip-aaa/web-project-sub002/internal/db"
	"github.com/dip-aaa/web-project-sub002/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var (
		s                     domain.Session
		revokedAt, lastSeenAt sql.NullTime
		ip, jti, refreshHash  sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, revoked_at, last_seen_at, ip_address, refresh_jti, refresh_token_hash, created_at
		 FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &s.ExpiresAt, &revokedAt, &lastSeenAt, &ip, &jti, &refreshHash, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.RevokedAt = db.TimePtr(revokedAt)
	s.LastSeenAt = db.TimePtr(lastSeenAt)
	s.IPAddress = ip.String
	s.RefreshJti = jti.String
	s.RefreshTokenHash = refreshHash.String
	return &s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, revoked_at, last_seen_at, ip_address, refresh_jti, refresh_token_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.ExpiresAt, db.NullTime(s.RevokedAt), db.NullTime(s.LastSeenAt),
		db.NullString(s.IPAddress), db.NullString(s.RefreshJti), db.NullString(s.RefreshTokenHash), s.CreatedAt)
	return err
}

// Revoke marks the session as revoked. Already revoked sessions keep their original timestamp.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, time.Now().UTC())
	return err
}

// RevokeAllSessionsByUser revokes every live session of the user.
func (r *PostgresRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, time.Now().UTC())
	return err
}

func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateRefreshToken stores the jti and hash of the session's current refresh token.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3 WHERE id = $1`,
		sessionID, db.NullString(jti), db.NullString(refreshTokenHash))
	return err
}
