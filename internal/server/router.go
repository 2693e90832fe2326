// Package server assembles the REST router and the gRPC health server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/cache"
	cataloghandler "github.com/dip-aaa/web-project-sub002/internal/catalog/handler"
	"github.com/dip-aaa/web-project-sub002/internal/devotp"
	healthhandler "github.com/dip-aaa/web-project-sub002/internal/health/handler"
	identityhandler "github.com/dip-aaa/web-project-sub002/internal/identity/handler"
	"github.com/dip-aaa/web-project-sub002/internal/security"
	"github.com/dip-aaa/web-project-sub002/internal/server/middleware"
)

const requestTimeout = 30 * time.Second

// Deps holds the handlers and middleware dependencies of the REST API.
type Deps struct {
	// Auth serves /auth/*.
	Auth identityhandler.Service
	// Tokens validates bearer access tokens on protected routes.
	Tokens *security.TokenProvider
	// Sessions reports whether a token's session is still active. If nil, only the token is checked.
	Sessions middleware.SessionValidator
	// Catalog serves /colleges and /categories. If nil, those routes are not mounted.
	Catalog cataloghandler.Lister
	// Health serves /healthz and /readyz. If nil, a checker with no dependencies is used.
	Health *healthhandler.Checker
	// Limiter throttles /auth/* per client IP. If nil, /auth/* is not throttled.
	Limiter            cache.RateLimiter
	RateLimitPerMinute int
	// DevOTP exposes GET /dev/otp. Set only when dev OTP mode is enabled outside production.
	DevOTP devotp.Store
	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string
	Log         *zap.Logger
}

// NewRouter returns the REST API handler, instrumented with otelhttp.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	checker := d.Health
	if checker == nil {
		checker = healthhandler.NewChecker(nil, nil, log)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.CaptureClientIP)
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", checker.Live)
	r.Get("/readyz", checker.Ready)

	authn := middleware.Authenticate(d.Tokens, d.Sessions)
	optionalAuthn := middleware.OptionalAuthenticate(d.Tokens, d.Sessions)
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Limiter, d.RateLimitPerMinute, log))
		identityhandler.New(d.Auth, log).Mount(r, authn, optionalAuthn)
	})

	if d.Catalog != nil {
		h := cataloghandler.New(d.Catalog, log)
		r.Get("/colleges", h.Colleges)
		r.Get("/categories", h.Categories)
	}

	if d.DevOTP != nil {
		log.Warn("dev OTP endpoint enabled; do not use in production")
		r.Get("/dev/otp", devotp.Handler(d.DevOTP))
	}

	return otelhttp.NewHandler(r, "campus-auth")
}
