package signupform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Department  string `json:"department,omitempty"`
}

// SessionTokens is the verify-otp response. User is kept as the raw JSON the server sent.
type SessionTokens struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user"`
}

// APIError is a non-2xx response. Message is shown to the user verbatim.
type APIError struct {
	Status     int
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth api: %d: %s", e.Status, e.Message)
}

// AuthAPI is the part of the auth service the form talks to. The returned string is the
// server's notice message, which may be empty.
type AuthAPI interface {
	Signup(ctx context.Context, req SignupRequest) (string, error)
	VerifyOTP(ctx context.Context, email, otp string) (*SessionTokens, error)
	ResendOTP(ctx context.Context, email string) (string, error)
}

type messageBody struct {
	Message string `json:"message"`
}

// HTTPClient calls the auth endpoints over HTTP. Requests are never retried.
type HTTPClient struct {
	http *resty.Client
}

// NewHTTPClient returns a client for the API at baseURL (e.g. http://localhost:8080).
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPClient{http: c}
}

func (c *HTTPClient) Signup(ctx context.Context, req SignupRequest) (string, error) {
	var out messageBody
	if err := c.post(ctx, "/auth/signup", req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, email, otp string) (*SessionTokens, error) {
	var out SessionTokens
	body := map[string]string{"email": email, "otp": otp}
	if err := c.post(ctx, "/auth/verify-otp", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ResendOTP(ctx context.Context, email string) (string, error) {
	var out messageBody
	if err := c.post(ctx, "/auth/resend-otp", map[string]string{"email": email}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Logout revokes the session behind refreshToken.
func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	return c.post(ctx, "/auth/logout", map[string]string{"refreshToken": refreshToken}, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, result interface{}) error {
	var apiErr messageBody
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetError(&apiErr)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("auth api: %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return &APIError{Status: resp.StatusCode(), Message: apiErr.Message, RetryAfter: resp.Header().Get("Retry-After")}
	}
	return nil
}
