package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"client-connect/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(_ context.Context, event *domain.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestMultiEmitter_CallsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	a := &mockEventEmitter{emitErr: errA}
	b := &mockEventEmitter{}
	m := MultiEmitter{a, nil, b}

	err := m.Emit(context.Background(), domain.NewEvent(domain.EventRefresh, "alice", "success"))
	if !errors.Is(err, errA) {
		t.Fatalf("err = %v, want %v", err, errA)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", a.count(), b.count())
	}
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	EmitAsync(context.Background(), nil, domain.NewEvent("x", "", ""), nil)
}

func TestEmitAsync_NilEvent(t *testing.T) {
	m := &mockEventEmitter{}
	EmitAsync(context.Background(), m, nil, nil)
	if m.count() != 0 {
		t.Error("nil event should not be emitted")
	}
}

func TestEmitAsync_SurvivesCanceledRequest(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(ctx, m, domain.NewEvent(domain.EventLoginAttempt, "alice", "otp_sent"), nil)
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not emitted")
	}
}

func TestNewEvent(t *testing.T) {
	e := domain.NewEvent(domain.EventLoginAttempt, "alice", "otp_sent")
	if e.Source != domain.Source || e.Username != "alice" || e.Outcome != "otp_sent" {
		t.Errorf("event = %+v", e)
	}
	if e.CreatedAt.IsZero() || e.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want UTC now", e.CreatedAt)
	}
}
