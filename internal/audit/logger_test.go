package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"client-connect/backend/internal/audit/domain"
)

type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByActor(context.Context, string, int) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, nil)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	logger.LogEvent(context.Background(), "alice", ActionLoginSuccess, ResourceSession, "meta")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" {
		t.Error("id should be set")
	}
	if e.Actor != "alice" {
		t.Errorf("actor = %q, want %q", e.Actor, "alice")
	}
	if e.Action != ActionLoginSuccess || e.Resource != ResourceSession {
		t.Errorf("action/resource = %q/%q", e.Action, e.Resource)
	}
	if e.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", e.IP, "192.168.1.1")
	}
	if e.Metadata != "meta" {
		t.Errorf("metadata = %q, want %q", e.Metadata, "meta")
	}
	if !e.CreatedAt.Equal(fixed) {
		t.Errorf("created_at = %v, want %v", e.CreatedAt, fixed)
	}
}

func TestLogger_LogEvent_UnknownIP(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), "", ActionLoginFailed, ResourceSession, "")
	if len(repo.entries) != 1 || repo.entries[0].IP != UnknownIP {
		t.Fatalf("entries = %+v, want one with ip %q", repo.entries, UnknownIP)
	}
}

func TestLogger_LogEvent_RepoErrorSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), "alice", ActionLoginFailed, ResourceSession, "")
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), "a", "b", "c", "d")
	NewLogger(nil, nil, nil).LogEvent(context.Background(), "a", "b", "c", "d")
}

func TestMiddleware_StoresClientIP(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = IPFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "203.0.113.7" {
		t.Errorf("ip = %q, want %q", got, "203.0.113.7")
	}
}

func TestClientIP_NoPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7"
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Errorf("ClientIP = %q", got)
	}
}
