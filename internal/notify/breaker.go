package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerNotifier fails fast while the wrapped notifier keeps failing, so a dead relay does not
// hold every login request for a full SMTP timeout.
type BreakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerNotifier wraps next. The breaker opens after 5 consecutive failures and probes again after 30s.
func NewBreakerNotifier(next Notifier, logger *zap.Logger) *BreakerNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "notify",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notify: circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerNotifier{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Send forwards to the wrapped notifier unless the breaker is open.
func (n *BreakerNotifier) Send(ctx context.Context, to, subject, body string) error {
	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, n.next.Send(ctx, to, subject, body)
	})
	return err
}

// State returns the current breaker state.
func (n *BreakerNotifier) State() gobreaker.State {
	return n.cb.State()
}
