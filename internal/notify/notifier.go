// Package notify delivers out-of-band messages (OTP codes, account credentials) to users.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned by senders that lack the settings needed to deliver.
var ErrNotConfigured = errors.New("notify: not configured")

// Notifier sends a plain-text message to a destination address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Disabled is a Notifier that always fails with ErrNotConfigured.
var Disabled Notifier = disabled{}

type disabled struct{}

func (disabled) Send(context.Context, string, string, string) error { return ErrNotConfigured }

// LogNotifier records that a message would have been sent without delivering it.
// The body is never logged since it carries secrets.
type LogNotifier struct {
	Logger *zap.Logger
}

// Send logs the destination and subject.
func (n LogNotifier) Send(_ context.Context, to, subject, _ string) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notify: message not delivered (log notifier)", zap.String("to", to), zap.String("subject", subject))
	return nil
}
