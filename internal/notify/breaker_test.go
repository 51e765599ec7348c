package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) Send(context.Context, string, string, string) error {
	n.calls++
	return n.err
}

func TestBreakerNotifier_PassesThrough(t *testing.T) {
	next := &countingNotifier{}
	n := NewBreakerNotifier(next, nil)
	if err := n.Send(context.Background(), "a@example.com", "s", "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}
}

func TestBreakerNotifier_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("relay down")
	next := &countingNotifier{err: boom}
	n := NewBreakerNotifier(next, nil)

	for i := 0; i < 5; i++ {
		if err := n.Send(context.Background(), "a@example.com", "s", "b"); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want %v", i, err, boom)
		}
	}
	if n.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", n.State())
	}
	err := n.Send(context.Background(), "a@example.com", "s", "b")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrOpenState", err)
	}
	if next.calls != 5 {
		t.Errorf("calls = %d, want 5 (open breaker must not call through)", next.calls)
	}
}

func TestLogNotifier_NilLogger(t *testing.T) {
	if err := (LogNotifier{}).Send(context.Background(), "a@example.com", "s", "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
