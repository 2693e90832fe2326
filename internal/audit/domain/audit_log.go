package domain

import "time"

// Audit actions recorded by the auth service.
const (
	ActionSignup       = "signup"
	ActionOTPResend    = "otp_resend"
	ActionOTPVerify    = "otp_verify"
	ActionOTPFailure   = "otp_failure"
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionLogout       = "logout"
	ActionTokenReuse   = "refresh_token_reuse"
)

// Audit resources.
const (
	ResourceUser    = "user"
	ResourceSession = "session"
	ResourceOTP     = "otp"
)

// AuditLog represents an audit event. UserID is empty for events without a known user.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
