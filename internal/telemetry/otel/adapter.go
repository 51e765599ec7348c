package otel

import (
	"context"
	"sort"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"client-connect/backend/internal/telemetry"
	"client-connect/backend/internal/telemetry/domain"
)

// instrumentationName names the logger, tracer and meter used by this service.
const instrumentationName = "client-connect/auth"

// recordEmitter is the subset of otellog.Logger used by the emitter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return newEventEmitterWithLogger(provider.Logger(instrumentationName))
}

func newEventEmitterWithLogger(l recordEmitter) *otelEmitter {
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record with attributes event_type, source, username,
// outcome and one attribute per metadata key (prefixed "meta.").
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	rec.SetBody(otellog.StringValue(event.EventType))
	rec.SetSeverity(otellog.SeverityInfo)
	rec.AddAttributes(
		otellog.String("event_type", event.EventType),
		otellog.String("source", event.Source),
		otellog.String("outcome", event.Outcome),
	)
	if event.Username != "" {
		rec.AddAttributes(otellog.String("username", event.Username))
	}
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.AddAttributes(otellog.String("meta."+k, event.Metadata[k]))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
