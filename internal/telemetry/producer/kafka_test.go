package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"client-connect/backend/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), domain.NewEvent("x", "", "")); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "events"}
	ev := domain.NewEvent(domain.EventLoginAttempt, "alice", "otp_sent")

	if err := p.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "alice" {
		t.Errorf("key = %q, want alice", w.msgs[0].Key)
	}
	var got domain.Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.EventType != domain.EventLoginAttempt || got.Outcome != "otp_sent" {
		t.Errorf("payload = %+v", got)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := &KafkaProducer{writer: &fakeWriter{err: boom}}
	if err := p.Emit(context.Background(), domain.NewEvent("x", "", "")); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
