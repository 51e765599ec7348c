// Package telemetry fans auth events out to OpenTelemetry and Kafka.
package telemetry

import (
	"context"
	"errors"

	"client-connect/backend/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// MultiEmitter emits each event to every non-nil emitter and joins their errors.
type MultiEmitter []EventEmitter

// Emit calls every emitter even when an earlier one fails.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.Event) error {
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
