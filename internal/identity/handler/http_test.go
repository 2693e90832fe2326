package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dip-aaa/web-project-sub002/internal/httpx"
	"github.com/dip-aaa/web-project-sub002/internal/identity/service"
	"github.com/dip-aaa/web-project-sub002/internal/server/middleware"
	userdomain "github.com/dip-aaa/web-project-sub002/internal/user/domain"
	"github.com/dip-aaa/web-project-sub002/internal/validation"
)

type stubService struct {
	signupIn   service.SignupInput
	signupErr  error
	verifyErr  error
	resendErr  error
	loginErr   error
	refreshErr error
	logoutTok  string
	logoutSess string
	meUserID   string
}

var expiresAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var activeUser = &userdomain.User{ID: "u1", Email: "a@khwopa.edu.np", Name: "A", CollegeID: "khwopa", Status: userdomain.UserStatusActive}

func authResult() *service.AuthResult {
	return &service.AuthResult{AccessToken: "at", RefreshToken: "rt", ExpiresAt: expiresAt, SessionID: "s1", User: activeUser}
}

func (s *stubService) Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error) {
	s.signupIn = in
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return &service.SignupResult{Email: in.Email, ExpiresAt: expiresAt}, nil
}

func (s *stubService) VerifyOTP(ctx context.Context, email, code string) (*service.AuthResult, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return authResult(), nil
}

func (s *stubService) ResendOTP(ctx context.Context, email string) (*service.SignupResult, error) {
	if s.resendErr != nil {
		return nil, s.resendErr
	}
	return &service.SignupResult{Email: email, ExpiresAt: expiresAt}, nil
}

func (s *stubService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return authResult(), nil
}

func (s *stubService) Refresh(ctx context.Context, tok string) (*service.AuthResult, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return authResult(), nil
}

func (s *stubService) Logout(ctx context.Context, tok string) error {
	s.logoutTok = tok
	s.logoutSess, _ = middleware.GetSessionID(ctx)
	return nil
}

func (s *stubService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	s.meUserID = userID
	if userID == "" {
		return nil, service.ErrUserNotFound
	}
	return activeUser, nil
}

// fakeAuthn authenticates every request as u1/s1.
func fakeAuthn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), "u1", "khwopa", "s1")))
	})
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) { New(svc, nil).Mount(r, fakeAuthn, fakeAuthn) })
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.MessageBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestSignup_Created(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newRouter(svc), http.MethodPost, "/auth/signup",
		`{"name":"A","email":"x@khwopa.edu.np","password":"Abcd1234","confirmPassword":"Abcd1234","phoneNumber":"9800000000","department":"Computer"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp OTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, MsgOTPSent, resp.Message)
	assert.Equal(t, "x@khwopa.edu.np", resp.Email)
	assert.Equal(t, "9800000000", svc.signupIn.Phone)
	assert.Equal(t, "Computer", svc.signupIn.Department)
	assert.NotContains(t, rec.Body.String(), "devOtp")
}

func TestSignup_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"empty body", ``, nil, http.StatusBadRequest, validation.MsgRequiredFields},
		{"bad json", `{`, nil, http.StatusBadRequest, "Request body must be valid JSON"},
		{"missing password", `{"name":"A","email":"x@khwopa.edu.np"}`, nil, http.StatusBadRequest, validation.MsgRequiredFields},
		{"mismatch", `{"name":"A","email":"x@khwopa.edu.np","password":"Abcd1234","confirmPassword":"Abcd12345"}`, nil, http.StatusBadRequest, validation.MsgPasswordMismatch},
		{"already registered", `{"name":"A","email":"x@khwopa.edu.np","password":"Abcd1234"}`, service.ErrEmailAlreadyRegistered, http.StatusConflict, "Email already registered"},
		{"domain", `{"name":"A","email":"x@gmail.com","password":"Abcd1234"}`,
			fmt.Errorf("%w: %w", service.ErrDomainNotAllowed, &validation.Error{Field: "email", Message: "Please use your college email address ending with @khwopa.edu.np"}),
			http.StatusBadRequest, "Please use your college email address ending with @khwopa.edu.np"},
		{"mail", `{"name":"A","email":"x@khwopa.edu.np","password":"Abcd1234"}`, service.ErrMailDelivery, http.StatusBadGateway, MsgMailDeliveryFailed},
		{"internal", `{"name":"A","email":"x@khwopa.edu.np","password":"Abcd1234"}`, errors.New("db down"), http.StatusInternalServerError, httpx.MsgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newRouter(&stubService{signupErr: tt.err}), http.MethodPost, "/auth/signup", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, message(t, rec))
		})
	}
}

func TestVerifyOTP_Session(t *testing.T) {
	rec := do(t, newRouter(&stubService{}), http.MethodPost, "/auth/verify-otp", `{"email":"a@khwopa.edu.np","otp":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, k := range []string{"accessToken", "refreshToken", "user"} {
		assert.Contains(t, raw, k)
	}
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "at", resp.AccessToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "khwopa", resp.User.CollegeID)
	assert.Equal(t, "active", resp.User.Status)
}

func TestVerifyOTP_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrOTPExpired, http.StatusGone, "OTP expired. Please request a new one."},
		{service.ErrInvalidOTP, http.StatusBadRequest, MsgInvalidOTP},
		{service.ErrOTPNotFound, http.StatusNotFound, MsgOTPNotFound},
		{service.ErrTooManyAttempts, http.StatusTooManyRequests, MsgTooManyAttempts},
		{&validation.Error{Field: "otp", Message: validation.MsgInvalidOTP}, http.StatusBadRequest, validation.MsgInvalidOTP},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			rec := do(t, newRouter(&stubService{verifyErr: tt.err}), http.MethodPost, "/auth/verify-otp", `{"email":"a@khwopa.edu.np","otp":"123456"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, message(t, rec))
		})
	}
}

func TestResendOTP(t *testing.T) {
	rec := do(t, newRouter(&stubService{}), http.MethodPost, "/auth/resend-otp", `{"email":"a@khwopa.edu.np"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newRouter(&stubService{resendErr: &service.RetryAfterError{After: 42500 * time.Millisecond}}), http.MethodPost, "/auth/resend-otp", `{"email":"a@khwopa.edu.np"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "43", rec.Header().Get("Retry-After"))
	assert.Equal(t, MsgResendTooSoon, message(t, rec))

	rec = do(t, newRouter(&stubService{resendErr: service.ErrAlreadyVerified}), http.MethodPost, "/auth/resend-otp", `{"email":"a@khwopa.edu.np"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginAndRefresh(t *testing.T) {
	rec := do(t, newRouter(&stubService{}), http.MethodPost, "/auth/login", `{"email":"a@khwopa.edu.np","password":"Abcd1234"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newRouter(&stubService{loginErr: service.ErrInvalidCredentials}), http.MethodPost, "/auth/login", `{"email":"a@khwopa.edu.np","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MsgInvalidCredentials, message(t, rec))

	rec = do(t, newRouter(&stubService{loginErr: service.ErrAccountNotVerified}), http.MethodPost, "/auth/login", `{"email":"a@khwopa.edu.np","password":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, newRouter(&stubService{refreshErr: service.ErrRefreshTokenReuse}), http.MethodPost, "/auth/refresh", `{"refreshToken":"rt"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, newRouter(&stubService{}), http.MethodPost, "/auth/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newRouter(svc), http.MethodPost, "/auth/logout", `{"refreshToken":"rt"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rt", svc.logoutTok)

	svc = &stubService{}
	rec = do(t, newRouter(svc), http.MethodPost, "/auth/logout", ``)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.logoutTok)
	assert.Equal(t, "s1", svc.logoutSess)
}

func TestMe(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newRouter(svc), http.MethodGet, "/auth/me", ``)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", svc.meUserID)
	var u UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "a@khwopa.edu.np", u.Email)
}
