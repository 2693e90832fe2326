package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dip-aaa/web-project-sub002/internal/httpx"
	"github.com/dip-aaa/web-project-sub002/internal/security"
)

const bearerPrefix = "bearer "

// MsgUnauthorized is the body message for missing, invalid or revoked access tokens.
const MsgUnauthorized = "missing or invalid authorization"

// SessionValidator reports whether sessionID is still active (not revoked, not expired).
type SessionValidator func(ctx context.Context, sessionID string) (bool, error)

// Authenticate validates the Bearer access token and sets user_id, college_id and session_id
// in the request context. When validate is non-nil the session must also still be active.
func Authenticate(tokens *security.TokenProvider, validate SessionValidator) func(http.Handler) http.Handler {
	return authenticate(tokens, validate, false)
}

// OptionalAuthenticate sets the identity like Authenticate when a valid bearer token for an
// active session is present, and otherwise passes the request through unchanged.
func OptionalAuthenticate(tokens *security.TokenProvider, validate SessionValidator) func(http.Handler) http.Handler {
	return authenticate(tokens, validate, true)
}

func authenticate(tokens *security.TokenProvider, validate SessionValidator, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(status int, msg string) {
				if optional {
					next.ServeHTTP(w, r)
					return
				}
				httpx.Message(w, status, msg)
			}
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				reject(http.StatusUnauthorized, MsgUnauthorized)
				return
			}
			id, err := tokens.ValidateAccess(token)
			if err != nil {
				reject(http.StatusUnauthorized, MsgUnauthorized)
				return
			}
			if validate != nil {
				ok, err := validate(r.Context(), id.SessionID)
				if err != nil {
					reject(http.StatusInternalServerError, httpx.MsgInternal)
					return
				}
				if !ok {
					reject(http.StatusUnauthorized, MsgUnauthorized)
					return
				}
			}
			ctx := WithIdentity(r.Context(), id.UserID, id.CollegeID, id.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
