// Package jobs runs background work on asynq: credential mail delivery and the refresh token sweep.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"client-connect/backend/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeRefreshSweep is the task type for purging expired refresh tokens.
	TaskTypeRefreshSweep = "refresh:sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// SendEmailJob delivers TaskTypeSendEmail tasks through a Notifier.
type SendEmailJob struct {
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewSendEmailJob returns the mail task handler. A nil notifier rejects every task without retry.
func NewSendEmailJob(notifier notify.Notifier, logger *zap.Logger) *SendEmailJob {
	if notifier == nil {
		notifier = notify.Disabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendEmailJob{notifier: notifier, logger: logger.Named("jobs.mail")}
}

// Handle processes one TaskTypeSendEmail task. Malformed payloads and an unconfigured notifier are
// not retried; transport errors are returned so asynq retries with backoff.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.To == "" {
		j.logger.Error("drop malformed mail task")
		return fmt.Errorf("mail task: malformed payload: %w", asynq.SkipRetry)
	}
	err := j.notifier.Send(ctx, payload.To, payload.Subject, payload.Body)
	switch {
	case err == nil:
		j.logger.Info("mail sent", zap.String("to", payload.To), zap.String("subject", payload.Subject))
		return nil
	case errors.Is(err, notify.ErrNotConfigured):
		j.logger.Error("mail dropped, notifier not configured", zap.String("to", payload.To))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		j.logger.Warn("mail send failed", zap.String("to", payload.To), zap.Error(err))
		return err
	}
}
