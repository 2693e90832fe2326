package middleware

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/cache"
	"github.com/dip-aaa/web-project-sub002/internal/httpx"
)

// MsgTooManyRequests is the body message when a client exceeds the rate limit.
const MsgTooManyRequests = "Too many requests. Please try again later."

// RateLimit allows perMinute requests per client IP and answers 429 with Retry-After beyond that.
// Limiter errors fail open.
func RateLimit(limiter cache.RateLimiter, perMinute int, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			retryAfter, err := limiter.Allow(r.Context(), ClientIP(r), perMinute)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httpx.Message(w, http.StatusTooManyRequests, MsgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
