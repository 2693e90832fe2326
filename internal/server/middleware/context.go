// Package middleware holds the chi middleware for the auth API: bearer authentication,
// client IP capture, request logging and rate limiting.
package middleware

import "context"

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	collegeIDKey = contextKey{"college_id"}
	sessionIDKey = contextKey{"session_id"}
)

// WithIdentity returns a context with user_id, college_id, and session_id set.
// Handlers and the auth service can read these via GetUserID, GetCollegeID, GetSessionID.
func WithIdentity(ctx context.Context, userID, collegeID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, collegeIDKey, collegeID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetCollegeID returns the college_id from context. It is "" for users outside a seeded college.
func GetCollegeID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(collegeIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}
