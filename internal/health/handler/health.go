// Package handler serves liveness and readiness over HTTP and mirrors readiness into the
// standard gRPC health service.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dip-aaa/web-project-sub002/internal/httpx"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusResponse is the body of /healthz and /readyz.
type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Checker runs the readiness probes. A nil dependency is skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
	log    *zap.Logger
}

// NewChecker returns a Checker. Any argument may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{pinger: pinger, policy: policy, log: log}
}

// Check pings the database and the policy engine and joins their failures.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	var errs []error
	if c.pinger != nil {
		if err := c.pinger.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Live always answers 200 while the process is up.
func (c *Checker) Live(w http.ResponseWriter, _ *http.Request) {
	httpx.JSONResponse(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Ready answers 200 when every dependency is reachable and 503 otherwise.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		c.log.Warn("readiness check failed", zap.Error(err))
		httpx.JSONResponse(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	httpx.JSONResponse(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Sync sets the overall status of hs from Check every interval until ctx is done.
func (c *Checker) Sync(ctx context.Context, hs *health.Server, interval time.Duration) {
	c.update(ctx, hs)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			c.update(ctx, hs)
		}
	}
}

func (c *Checker) update(ctx context.Context, hs *health.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
}
