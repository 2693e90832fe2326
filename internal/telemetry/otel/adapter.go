package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/dip-aaa/web-project-sub002/internal/telemetry"
)

const instrumentationName = "campus.auth"

// NewEventEmitter returns an EventEmitter that writes each event as an OTel log record and
// counts it on the campus.auth.events counter. A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider, meter metric.Meter) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Noop{}
	}
	e := &otelEmitter{logger: provider.Logger(instrumentationName)}
	if meter != nil {
		if c, err := meter.Int64Counter("campus.auth.events",
			metric.WithDescription("Auth events by type"),
			metric.WithUnit("{event}"),
		); err == nil {
			e.counter = c
		}
	}
	return e
}

type otelEmitter struct {
	logger  otellog.Logger
	counter metric.Int64Counter
}

func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(event.EventType))
	rec.SetSeverity(severity(event.EventType))
	rec.AddAttributes(otellog.String("event_type", event.EventType))
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.Email != "" {
		rec.AddAttributes(otellog.String("email", event.Email))
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	e.logger.Emit(ctx, rec)

	if e.counter != nil {
		e.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", event.EventType)))
	}
	return nil
}

func severity(eventType string) otellog.Severity {
	switch eventType {
	case telemetry.EventOTPFailed, telemetry.EventLoginFailure:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
