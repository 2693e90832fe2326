// Package handler exposes the auth service over REST.
package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/httpx"
	"github.com/dip-aaa/web-project-sub002/internal/identity/service"
	"github.com/dip-aaa/web-project-sub002/internal/server/middleware"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
	"github.com/dip-aaa/web-project-sub002/internal/validation"
)

// User-facing messages for service errors.
const (
	MsgOTPSent             = "OTP sent to your email"
	MsgEmailRegistered     = "Email already registered"
	MsgOTPNotFound         = "No pending signup found for this email. Please sign up again."
	MsgOTPExpired          = "OTP expired. Please request a new one."
	MsgInvalidOTP          = "Invalid OTP"
	MsgTooManyAttempts     = "Too many incorrect attempts. Please request a new OTP."
	MsgAlreadyVerified     = "Email already verified. Please log in."
	MsgResendTooSoon       = "Please wait before requesting another OTP"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgAccountNotVerified  = "Please verify your email before logging in"
	MsgInvalidRefreshToken = "Session expired. Please log in again."
	MsgUserNotFound        = "User not found"
	MsgMailDeliveryFailed  = "Could not send the verification email. Please try again."
)

// Service is the part of the auth service used by the handler.
type Service interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error)
	VerifyOTP(ctx context.Context, email, code string) (*service.AuthResult, error)
	ResendOTP(ctx context.Context, email string) (*service.SignupResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*userdomain.User, error)
}

// Handler serves /auth/*.
type Handler struct {
	svc Service
	log *zap.Logger
}

// New returns a Handler. log may be nil.
func New(svc Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// Mount registers the auth routes on r. authn guards the routes that need a bearer token;
// optionalAuthn identifies the caller on /logout without requiring a token.
func (h *Handler) Mount(r chi.Router, authn, optionalAuthn func(http.Handler) http.Handler) {
	r.Post("/signup", h.Signup)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Post("/resend-otp", h.ResendOTP)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.With(optionalAuthn).Post("/logout", h.Logout)
	r.With(authn).Get("/me", h.Me)
}

type signupRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,max=254"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty" validate:"max=20"`
	Department      string `json:"department,omitempty" validate:"max=100"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	OTP   string `json:"otp" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// OTPResponse answers signup and resend.
type OTPResponse struct {
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	DevOTP    string    `json:"devOtp,omitempty"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Department  string `json:"department,omitempty"`
	CollegeID   string `json:"collegeId,omitempty"`
	Status      string `json:"status"`
}

// SessionResponse carries the tokens the client stores under accessToken, refreshToken and user.
type SessionResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         UserResponse `json:"user"`
}

func toUser(u *userdomain.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		PhoneNumber: u.Phone,
		Department:  u.Department,
		CollegeID:   u.CollegeID,
		Status:      string(u.Status),
	}
}

func toSession(res *service.AuthResult) SessionResponse {
	return SessionResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		User:         toUser(res.User),
	}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ConfirmPassword != "" {
		if err := validation.PasswordsMatch(req.Password, req.ConfirmPassword); err != nil {
			h.writeError(w, err)
			return
		}
	}
	res, err := h.svc.Signup(r.Context(), service.SignupInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.PhoneNumber,
		Department: req.Department,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONResponse(w, http.StatusCreated, OTPResponse{Message: MsgOTPSent, Email: res.Email, ExpiresAt: res.ExpiresAt, DevOTP: res.DevOTP})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONResponse(w, http.StatusOK, toSession(res))
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.ResendOTP(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONResponse(w, http.StatusOK, OTPResponse{Message: MsgOTPSent, Email: res.Email, ExpiresAt: res.ExpiresAt, DevOTP: res.DevOTP})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONResponse(w, http.StatusOK, toSession(res))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONResponse(w, http.StatusOK, toSession(res))
}

// Logout accepts an optional body; with no refresh token the bearer session (if any) is revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	u, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONResponse(w, http.StatusOK, toUser(u))
}

// writeError maps service errors to status codes. Validation errors carry their own message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		httpx.Message(w, http.StatusBadRequest, verr.Message)
		return
	}
	var ra *service.RetryAfterError
	if errors.As(err, &ra) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ra.After.Seconds()))))
		httpx.Message(w, http.StatusTooManyRequests, MsgResendTooSoon)
		return
	}
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		h.log.Error("auth request failed", zap.Error(err))
	}
	httpx.Message(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return http.StatusConflict, MsgEmailRegistered
	case errors.Is(err, service.ErrOTPNotFound):
		return http.StatusNotFound, MsgOTPNotFound
	case errors.Is(err, service.ErrOTPExpired):
		return http.StatusGone, MsgOTPExpired
	case errors.Is(err, service.ErrInvalidOTP):
		return http.StatusBadRequest, MsgInvalidOTP
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests, MsgTooManyAttempts
	case errors.Is(err, service.ErrAlreadyVerified):
		return http.StatusConflict, MsgAlreadyVerified
	case errors.Is(err, service.ErrResendTooSoon):
		return http.StatusTooManyRequests, MsgResendTooSoon
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, MsgInvalidCredentials
	case errors.Is(err, service.ErrAccountNotVerified):
		return http.StatusForbidden, MsgAccountNotVerified
	case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrRefreshTokenReuse):
		return http.StatusUnauthorized, MsgInvalidRefreshToken
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, MsgUserNotFound
	case errors.Is(err, service.ErrMailDelivery):
		return http.StatusBadGateway, MsgMailDeliveryFailed
	default:
		return http.StatusInternalServerError, httpx.MsgInternal
	}
}
