package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/audit"
	auditdomain "github.com/dip-aaa/web-project-sub002/internal/audit/domain"
	catalogdomain "github.com/dip-aaa/web-project-sub002/internal/catalog/domain"
	"github.com/dip-aaa/web-project-sub002/internal/devotp"
	identitydomain "github.com/dip-aaa/web-project-sub002/internal/identity/domain"
	"github.com/dip-aaa/web-project-sub002/internal/logger"
	"github.com/dip-aaa/web-project-sub002/internal/mail"
	otpdomain "github.com/dip-aaa/web-project-sub002/internal/otp/domain"
	"github.com/dip-aaa/web-project-sub002/internal/policy/engine"
	"github.com/dip-aaa/web-project-sub002/internal/security"
	"github.com/dip-aaa/web-project-sub002/internal/server/middleware"
	sessiondomain "github.com/dip-aaa/web-project-sub002/internal/session/domain"
	"github.com/dip-aaa/web-project-sub002/internal/telemetry"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
)

// Sentinel errors for auth service; handler maps them to HTTP statuses and messages.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrDomainNotAllowed       = errors.New("email domain not allowed")
	ErrOTPNotFound            = errors.New("no pending verification for email")
	ErrOTPExpired             = errors.New("otp expired")
	ErrInvalidOTP             = errors.New("invalid otp")
	ErrTooManyAttempts        = errors.New("too many incorrect otp attempts")
	ErrAlreadyVerified        = errors.New("email already verified")
	ErrResendTooSoon          = errors.New("otp resend requested too soon")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountNotVerified     = errors.New("account not verified")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrUserNotFound           = errors.New("user not found")
	ErrMailDelivery           = errors.New("could not send verification email")
)

// RetryAfterError wraps ErrResendTooSoon with the wait until the next code may be sent.
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string { return ErrResendTooSoon.Error() }
func (e *RetryAfterError) Unwrap() error { return ErrResendTooSoon }

// AuthResult holds the outcome of VerifyOTP, Login or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	User         *userdomain.User
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Update(ctx context.Context, u *userdomain.User) error
	Activate(ctx context.Context, id string) (bool, error)
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// SignupStore creates a pending user and its local identity atomically.
type SignupStore interface {
	CreatePendingUser(ctx context.Context, u *userdomain.User, i *identitydomain.Identity) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllSessionsByUser(ctx context.Context, userID string) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// OTPRepo stores the live signup code per email.
type OTPRepo interface {
	Upsert(ctx context.Context, c *otpdomain.Challenge) error
	GetByEmail(ctx context.Context, email string) (*otpdomain.Challenge, error)
	IncrementAttempts(ctx context.Context, email string) (int, error)
	DeleteByEmail(ctx context.Context, email string) error
}

// CollegeLookup resolves seeded colleges from email domains.
type CollegeLookup interface {
	ListColleges(ctx context.Context) ([]catalogdomain.College, error)
	CollegeByDomain(ctx context.Context, emailDomain string) (*catalogdomain.College, error)
}

// Deps are the collaborators of AuthService. Audit, Events, DevOTP and Log may be nil.
type Deps struct {
	Users      UserRepo
	Identities IdentityRepo
	Signups    SignupStore
	Sessions   SessionRepo
	OTPs       OTPRepo
	Colleges   CollegeLookup
	Policy     engine.Evaluator
	Hasher     *security.Hasher
	Tokens     *security.TokenProvider
	Mailer     mail.Sender
	DevOTP     devotp.Store
	Audit      audit.AuditLogger
	Events     telemetry.EventEmitter
	Log        *zap.Logger
}

// Options are the tunable limits of the signup flow.
type Options struct {
	// AllowedDomains are email suffixes accepted in addition to seeded college domains.
	AllowedDomains []string
	OTPTTL         time.Duration
	OTPMaxAttempts int
	ResendCooldown time.Duration
	RefreshTTL     time.Duration
}

// AuthService implements OTP-verified signup plus password login, refresh, and logout.
type AuthService struct {
	Deps
	opts Options
	now  func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(deps Deps, opts Options) *AuthService {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = telemetry.Noop{}
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.OTPMaxAttempts <= 0 {
		opts.OTPMaxAttempts = 5
	}
	if opts.ResendCooldown <= 0 {
		opts.ResendCooldown = time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 168 * time.Hour
	}
	return &AuthService{Deps: deps, opts: opts, now: time.Now}
}

// Login authenticates an active user with email and password, creates a session, and returns tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status == userdomain.UserStatusDisabled {
		s.loginFailed(ctx, "", email, "unknown_user")
		return nil, ErrInvalidCredentials
	}
	ident, err := s.Identities.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		s.loginFailed(ctx, user.ID, email, "no_local_identity")
		return nil, ErrInvalidCredentials
	}
	if err := s.Hasher.Compare(ident.PasswordHash, password); err != nil {
		s.loginFailed(ctx, user.ID, email, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if user.Status != userdomain.UserStatusActive {
		return nil, ErrAccountNotVerified
	}
	if s.Hasher.NeedsRehash(ident.PasswordHash) {
		if h, err := s.Hasher.Hash(password); err == nil {
			if err := s.Identities.UpdatePasswordHash(ctx, ident.ID, h); err != nil {
				s.Log.Warn("auth: password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
	}
	res, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, auditdomain.ActionLoginSuccess, auditdomain.ResourceSession, nil)
	s.emit(telemetry.EventLoginSuccess, user.ID, res.SessionID, email, nil)
	return res, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email, reason string) {
	meta := map[string]string{"reason": reason}
	s.logAudit(ctx, userID, auditdomain.ActionLoginFailure, auditdomain.ResourceUser, meta)
	s.emit(telemetry.EventLoginFailure, userID, "", email, meta)
}

// Refresh validates the refresh token, rotates it, and returns new tokens.
// Presenting an already-rotated token revokes every session of the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	id, err := s.Tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.Sessions.GetByID(ctx, id.SessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if sess == nil || !sess.Active(now) || sess.UserID != id.UserID {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != id.TokenID {
		if err := s.Sessions.RevokeAllSessionsByUser(ctx, id.UserID); err != nil {
			s.Log.Error("auth: revoke sessions after refresh reuse", zap.String("user_id", id.UserID), zap.Error(err))
		}
		s.logAudit(ctx, id.UserID, auditdomain.ActionTokenReuse, auditdomain.ResourceSession, map[string]string{"session_id": id.SessionID})
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.SecretHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.Users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.Sessions.UpdateLastSeen(ctx, sess.ID, now); err != nil {
		s.Log.Warn("auth: update last seen", zap.String("session_id", sess.ID), zap.Error(err))
	}
	newRefresh, err := s.Tokens.IssueRefresh(sess.ID, user.ID, user.CollegeID)
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.UpdateRefreshToken(ctx, sess.ID, newRefresh.ID, security.HashSecret(newRefresh.Token)); err != nil {
		return nil, err
	}
	access, err := s.Tokens.IssueAccess(sess.ID, user.ID, user.CollegeID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: newRefresh.Token,
		ExpiresAt:    access.ExpiresAt,
		SessionID:    sess.ID,
		User:         user,
	}, nil
}

// Logout revokes the session identified by the refresh token or by the access token in context.
// If refreshToken is non-empty, validates it and revokes that session.
// If refreshToken is empty and the auth middleware set session_id in context (Bearer access token), revokes that session.
// Otherwise no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	var sessionID, userID string
	if refreshToken != "" {
		id, err := s.Tokens.ValidateRefresh(refreshToken)
		if err != nil {
			return nil
		}
		sessionID, userID = id.SessionID, id.UserID
	} else {
		var ok bool
		if sessionID, ok = middleware.GetSessionID(ctx); !ok || sessionID == "" {
			return nil
		}
		userID, _ = middleware.GetUserID(ctx)
	}
	if err := s.Sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.logAudit(ctx, userID, auditdomain.ActionLogout, auditdomain.ResourceSession, map[string]string{"session_id": sessionID})
	s.emit(telemetry.EventLogout, userID, sessionID, "", nil)
	return nil
}

// Me returns the user for userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// SessionActive reports whether sessionID exists and is neither revoked nor expired.
// Used by the bearer middleware.
func (s *AuthService) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess != nil && sess.Active(s.now().UTC()), nil
}

// startSession creates a session for user and issues the first access/refresh pair.
func (s *AuthService) startSession(ctx context.Context, user *userdomain.User) (*AuthResult, error) {
	sessionID := uuid.New().String()
	now := s.now().UTC()
	refresh, err := s.Tokens.IssueRefresh(sessionID, user.ID, user.CollegeID)
	if err != nil {
		return nil, err
	}
	access, err := s.Tokens.IssueAccess(sessionID, user.ID, user.CollegeID)
	if err != nil {
		return nil, err
	}
	ip := audit.ClientIP(ctx)
	if ip == "unknown" {
		ip = ""
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		ExpiresAt:        now.Add(s.opts.RefreshTTL),
		LastSeenAt:       &now,
		IPAddress:        ip,
		RefreshJti:       refresh.ID,
		RefreshTokenHash: security.HashSecret(refresh.Token),
		CreatedAt:        now,
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt,
		SessionID:    sessionID,
		User:         user,
	}, nil
}

func (s *AuthService) logAudit(ctx context.Context, userID, action, resource string, meta map[string]string) {
	if s.Audit == nil {
		return
	}
	s.Audit.LogEvent(ctx, userID, action, resource, meta)
}

func (s *AuthService) emit(eventType, userID, sessionID, email string, meta map[string]string) {
	ev := &telemetry.Event{
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		Metadata:  meta,
	}
	if email != "" {
		ev.Email = logger.MaskEmail(email)
	}
	telemetry.EmitAsync(s.Events, ev)
}
