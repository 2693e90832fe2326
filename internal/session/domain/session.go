package domain

import "time"

// Session is a signed-in browser or device. Refresh tokens are bound to it by jti.
type Session struct {
	ID               string
	UserID           string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	LastSeenAt       *time.Time
	IPAddress        string
	RefreshJti       string
	RefreshTokenHash string
	CreatedAt        time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
