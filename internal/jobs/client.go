package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"client-connect/backend/internal/notify"
)

// Enqueuer submits tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client submits jobs to the queue.
type Client struct {
	client Enqueuer
	closer func() error
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	c := asynq.NewClient(redisOpts)
	return &Client{client: c, closer: c.Close}
}

// NewClientWith wraps an existing Enqueuer.
func NewClientWith(e Enqueuer) *Client {
	return &Client{client: e}
}

// EnqueueSendEmail queues an email for asynchronous delivery.
func (c *Client) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	task, err := NewSendEmailTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// QueueNotifier is a notify.Notifier that hands messages to the mail:send task instead of sending them.
// Send succeeds once the task is queued.
type QueueNotifier struct {
	client *Client
}

var _ notify.Notifier = (*QueueNotifier)(nil)

// NewQueueNotifier returns a Notifier backed by client.
func NewQueueNotifier(client *Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

// Send enqueues the message.
func (n *QueueNotifier) Send(ctx context.Context, to, subject, body string) error {
	if _, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{To: to, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("notify: enqueue mail: %w", err)
	}
	return nil
}
