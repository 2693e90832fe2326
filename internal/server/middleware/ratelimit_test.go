package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/cache"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int) (int, error) {
	return 0, errors.New("redis down")
}
func (failingLimiter) Close() error { return nil }

func TestRateLimit(t *testing.T) {
	h := RateLimit(cache.NewMemoryLimiter(), 2, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	codes := make([]int, 3)
	var last *httptest.ResponseRecorder
	for i := range codes {
		r := httptest.NewRequest(http.MethodPost, "/auth/signup", nil)
		r.RemoteAddr = "192.0.2.1:1000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, r)
		codes[i] = last.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), MsgTooManyRequests)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := RateLimit(failingLimiter{}, 1, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/colleges", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
