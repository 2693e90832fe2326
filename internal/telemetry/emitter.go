// Package telemetry carries auth events (signup, OTP, login) to OTel logs and Kafka.
package telemetry

import (
	"context"
	"errors"
	"time"
)

// Event types emitted by the auth service.
const (
	EventSignupRequested = "signup_requested"
	EventOTPSent         = "otp_sent"
	EventOTPResent       = "otp_resent"
	EventOTPVerified     = "otp_verified"
	EventOTPFailed       = "otp_failed"
	EventLoginSuccess    = "login_success"
	EventLoginFailure    = "login_failure"
	EventLogout          = "logout"
)

// SourceAuth is the Source of events emitted by the auth service.
const SourceAuth = "campus-auth"

// Event is a single auth event. Email is masked before it is set.
type Event struct {
	EventType string            `json:"eventType"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Email     string            `json:"email,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// EventEmitter emits telemetry events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards events.
type Noop struct{}

func (Noop) Emit(context.Context, *Event) error { return nil }
