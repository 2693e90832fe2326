package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	auditdomain "github.com/dip-aaa/web-project-sub002/internal/audit/domain"
	identitydomain "github.com/dip-aaa/web-project-sub002/internal/identity/domain"
	"github.com/dip-aaa/web-project-sub002/internal/logger"
	"github.com/dip-aaa/web-project-sub002/internal/mail"
	"github.com/dip-aaa/web-project-sub002/internal/otp"
	otpdomain "github.com/dip-aaa/web-project-sub002/internal/otp/domain"
	"github.com/dip-aaa/web-project-sub002/internal/telemetry"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
	"github.com/dip-aaa/web-project-sub002/internal/validation"
)

// SignupInput is the body of POST /auth/signup.
type SignupInput struct {
	Name       string
	Email      string
	Password   string
	Phone      string
	Department string
}

// SignupResult reports where the code went and until when it is valid.
// DevOTP is set only when the dev OTP store is wired.
type SignupResult struct {
	Email     string
	ExpiresAt time.Time
	DevOTP    string
}

// AllowedDomains returns the configured suffixes followed by seeded college domains, deduplicated.
func (s *AuthService) AllowedDomains(ctx context.Context) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		d = strings.TrimLeft(strings.ToLower(strings.TrimSpace(d)), "@.")
		if d != "" && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range s.opts.AllowedDomains {
		add(d)
	}
	if s.Colleges != nil {
		colleges, err := s.Colleges.ListColleges(ctx)
		if err != nil {
			s.Log.Warn("auth: list colleges for domain check", zap.Error(err))
		}
		for _, c := range colleges {
			add(c.EmailDomain)
		}
	}
	return out
}

// Signup validates the form, stores a pending user with its password hash, and mails a code.
// Signing up again before verification updates the pending profile.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	email := validation.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if err := validation.Required(
		validation.Field{Name: "name", Value: name},
		validation.Field{Name: "email", Value: email},
		validation.Field{Name: "password", Value: in.Password},
	); err != nil {
		return nil, err
	}
	if err := validation.Email(email, nil); err != nil {
		return nil, err
	}
	if err := validation.Password(in.Password); err != nil {
		return nil, err
	}
	if err := s.checkDomain(ctx, email); err != nil {
		return nil, err
	}

	existing, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != userdomain.UserStatusPending {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	collegeID := s.collegeFor(ctx, email)
	now := s.now().UTC()

	var user *userdomain.User
	if existing == nil {
		user = &userdomain.User{
			ID:         uuid.New().String(),
			Email:      email,
			Name:       name,
			Phone:      strings.TrimSpace(in.Phone),
			Department: strings.TrimSpace(in.Department),
			CollegeID:  collegeID,
			Status:     userdomain.UserStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ident := &identitydomain.Identity{
			ID:           uuid.New().String(),
			UserID:       user.ID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   email,
			PasswordHash: hash,
			CreatedAt:    now,
		}
		if err := s.Signups.CreatePendingUser(ctx, user, ident); err != nil {
			return nil, err
		}
	} else {
		user = existing
		user.Name = name
		user.Phone = strings.TrimSpace(in.Phone)
		user.Department = strings.TrimSpace(in.Department)
		user.CollegeID = collegeID
		if err := s.Users.Update(ctx, user); err != nil {
			return nil, err
		}
		if err := s.setPassword(ctx, user.ID, email, hash, now); err != nil {
			return nil, err
		}
	}

	res, err := s.sendCode(ctx, user, false)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, auditdomain.ActionSignup, auditdomain.ResourceUser, map[string]string{"college_id": collegeID})
	s.emit(telemetry.EventSignupRequested, user.ID, "", email, nil)
	return res, nil
}

// VerifyOTP checks the emailed code. On success the user becomes active, the code is consumed,
// and a session is started.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	email = validation.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if err := validation.Required(validation.Field{Name: "email", Value: email}); err != nil {
		return nil, err
	}
	if err := validation.OTP(code); err != nil {
		return nil, err
	}

	ch, err := s.OTPs.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrOTPNotFound
	}
	now := s.now().UTC()
	if ch.Expired(now) || ch.Exhausted(s.opts.OTPMaxAttempts) {
		s.discardCode(ctx, email)
		return nil, ErrOTPExpired
	}
	if !otp.OTPEqual(code, ch.CodeHash) {
		return nil, s.wrongCode(ctx, email)
	}

	// Consumed before activation: a second verify with the same code finds no challenge.
	if err := s.OTPs.DeleteByEmail(ctx, email); err != nil {
		return nil, err
	}
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.restoreCode(ctx, ch, err)
	}
	if user == nil || user.Status == userdomain.UserStatusDisabled {
		return nil, ErrOTPNotFound
	}
	if user.Status == userdomain.UserStatusPending {
		if _, err := s.Users.Activate(ctx, user.ID); err != nil {
			return nil, s.restoreCode(ctx, ch, err)
		}
		user.Status = userdomain.UserStatusActive
		user.UpdatedAt = now
	}

	res, err := s.startSession(ctx, user)
	if err != nil {
		return nil, s.restoreCode(ctx, ch, err)
	}
	if s.DevOTP != nil {
		s.DevOTP.Delete(ctx, email)
	}
	s.logAudit(ctx, user.ID, auditdomain.ActionOTPVerify, auditdomain.ResourceUser, nil)
	s.emit(telemetry.EventOTPVerified, user.ID, res.SessionID, email, nil)
	return res, nil
}

// restoreCode puts a consumed challenge back after a later step failed, so the same code can be
// submitted again. It returns cause.
func (s *AuthService) restoreCode(ctx context.Context, ch *otpdomain.Challenge, cause error) error {
	if err := s.OTPs.Upsert(ctx, ch); err != nil {
		s.Log.Warn("auth: restore otp after failed verify", zap.String("email", logger.MaskEmail(ch.Email)), zap.Error(err))
	}
	return cause
}

// ResendOTP mails a fresh code to a pending user, subject to the resend cooldown.
func (s *AuthService) ResendOTP(ctx context.Context, email string) (*SignupResult, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.Email(email, nil); err != nil {
		return nil, err
	}
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	switch {
	case user == nil || user.Status == userdomain.UserStatusDisabled:
		return nil, ErrOTPNotFound
	case user.Status == userdomain.UserStatusActive:
		return nil, ErrAlreadyVerified
	}
	ch, err := s.OTPs.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if now := s.now().UTC(); ch != nil && !ch.CanResend(now, s.opts.ResendCooldown) {
		return nil, &RetryAfterError{After: ch.RetryAfter(now, s.opts.ResendCooldown)}
	}
	res, err := s.sendCode(ctx, user, true)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, auditdomain.ActionOTPResend, auditdomain.ResourceOTP, nil)
	return res, nil
}

func (s *AuthService) checkDomain(ctx context.Context, email string) error {
	allowed := s.AllowedDomains(ctx)
	verr := &validation.Error{Field: "email", Message: validation.DomainMessage(allowed)}
	if s.Policy == nil {
		if validation.Email(email, allowed) != nil {
			return fmt.Errorf("%w: %w", ErrDomainNotAllowed, verr)
		}
		return nil
	}
	d, err := s.Policy.EvaluateSignup(ctx, email, allowed)
	if err != nil {
		return err
	}
	if !d.Allowed {
		s.Log.Info("auth: signup domain rejected", zap.String("email", logger.MaskEmail(email)), zap.String("reason", d.Reason))
		return fmt.Errorf("%w: %w", ErrDomainNotAllowed, verr)
	}
	return nil
}

func (s *AuthService) collegeFor(ctx context.Context, email string) string {
	if s.Colleges == nil {
		return ""
	}
	c, err := s.Colleges.CollegeByDomain(ctx, validation.EmailDomain(email))
	if err != nil {
		s.Log.Warn("auth: college lookup", zap.Error(err))
		return ""
	}
	if c == nil {
		return ""
	}
	return c.ID
}

func (s *AuthService) setPassword(ctx context.Context, userID, email, hash string, now time.Time) error {
	ident, err := s.Identities.GetByUserAndProvider(ctx, userID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil {
		return s.Identities.Create(ctx, &identitydomain.Identity{
			ID:           uuid.New().String(),
			UserID:       userID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   email,
			PasswordHash: hash,
			CreatedAt:    now,
		})
	}
	return s.Identities.UpdatePasswordHash(ctx, ident.ID, hash)
}

// sendCode stores a new challenge for user and mails the code. On a repeat signup inside the
// cooldown the live challenge is kept and nothing is sent.
func (s *AuthService) sendCode(ctx context.Context, user *userdomain.User, resend bool) (*SignupResult, error) {
	now := s.now().UTC()
	if !resend {
		ch, err := s.OTPs.GetByEmail(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		if ch != nil && !ch.Expired(now) && !ch.CanResend(now, s.opts.ResendCooldown) {
			res := &SignupResult{Email: user.Email, ExpiresAt: ch.ExpiresAt}
			if s.DevOTP != nil {
				res.DevOTP, _ = s.DevOTP.Get(ctx, user.Email)
			}
			return res, nil
		}
	}

	code, err := otp.GenerateOTP()
	if err != nil {
		return nil, err
	}
	ch := &otpdomain.Challenge{
		ID:         uuid.New().String(),
		Email:      user.Email,
		CodeHash:   otp.HashOTP(code),
		ExpiresAt:  now.Add(s.opts.OTPTTL),
		LastSentAt: now,
		CreatedAt:  now,
	}
	if err := s.OTPs.Upsert(ctx, ch); err != nil {
		return nil, err
	}
	res := &SignupResult{Email: user.Email, ExpiresAt: ch.ExpiresAt}
	if s.DevOTP != nil {
		s.DevOTP.Put(ctx, user.Email, code, ch.ExpiresAt)
		res.DevOTP = code
	}

	if err := s.deliver(ctx, user, code); err != nil {
		if s.DevOTP == nil {
			// An undelivered challenge must not hold the resend cooldown.
			if derr := s.OTPs.DeleteByEmail(ctx, user.Email); derr != nil {
				s.Log.Warn("auth: discard undelivered otp", zap.String("email", logger.MaskEmail(user.Email)), zap.Error(derr))
			}
			return nil, fmt.Errorf("%w: %w", ErrMailDelivery, err)
		}
		s.Log.Warn("auth: otp mail failed; code available from dev store", zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
	}

	eventType := telemetry.EventOTPSent
	if resend {
		eventType = telemetry.EventOTPResent
	}
	s.emit(eventType, user.ID, "", user.Email, nil)
	return res, nil
}

func (s *AuthService) deliver(ctx context.Context, user *userdomain.User, code string) error {
	if s.Mailer == nil {
		return errors.New("no mail sender configured")
	}
	msg, err := mail.RenderOTP(user.Email, user.Name, code, s.opts.OTPTTL)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, msg)
}

// wrongCode records a failed attempt. The challenge is dropped once the attempt limit is reached.
func (s *AuthService) wrongCode(ctx context.Context, email string) error {
	n, err := s.OTPs.IncrementAttempts(ctx, email)
	if err != nil {
		return err
	}
	meta := map[string]string{"attempts": fmt.Sprint(n)}
	s.logAudit(ctx, "", auditdomain.ActionOTPFailure, auditdomain.ResourceOTP, meta)
	s.emit(telemetry.EventOTPFailed, "", "", email, meta)
	if n >= s.opts.OTPMaxAttempts {
		s.discardCode(ctx, email)
		return ErrTooManyAttempts
	}
	return ErrInvalidOTP
}

func (s *AuthService) discardCode(ctx context.Context, email string) {
	if err := s.OTPs.DeleteByEmail(ctx, email); err != nil {
		s.Log.Warn("auth: delete otp challenge", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}
	if s.DevOTP != nil {
		s.DevOTP.Delete(ctx, email)
	}
}
