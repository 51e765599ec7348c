package devotp

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(5 * time.Minute)

	s.Put(ctx, "alice", "048213", exp)
	otp, gotExp, ok := s.Get(ctx, "alice")
	if !ok || otp != "048213" {
		t.Fatalf("Get = %q, %v; want 048213, true", otp, ok)
	}
	if !gotExp.Equal(exp) {
		t.Errorf("expiresAt = %v, want %v", gotExp, exp)
	}

	s.Put(ctx, "alice", "111111", exp)
	if otp, _, _ := s.Get(ctx, "alice"); otp != "111111" {
		t.Errorf("otp after overwrite = %q, want 111111", otp)
	}
}

func TestMemoryStore_Missing(t *testing.T) {
	if _, _, ok := NewMemoryStore().Get(context.Background(), "nobody"); ok {
		t.Fatal("expected ok false for missing username")
	}
}

func TestMemoryStore_Expired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }

	s.Put(ctx, "alice", "123456", now.Add(time.Minute))
	now = now.Add(2 * time.Minute)
	if _, _, ok := s.Get(ctx, "alice"); ok {
		t.Fatal("expected ok false after expiry")
	}
	if len(s.m) != 0 {
		t.Errorf("expired entry not removed, len = %d", len(s.m))
	}
}
