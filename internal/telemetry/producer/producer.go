// Package producer publishes auth events to a message broker for the worker to ship to Loki.
package producer

import (
	"github.com/dip-aaa/web-project-sub002/internal/telemetry"
)

// Producer is an EventEmitter backed by a broker connection that must be closed.
type Producer interface {
	telemetry.EventEmitter
	// Close releases the broker connection. Safe to call if already closed.
	Close() error
}
