package security

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestGenerateRefreshToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken: %v", err)
		}
		if len(tok) != 2*refreshTokenBytes {
			t.Fatalf("token length = %d, want %d", len(tok), 2*refreshTokenBytes)
		}
		if _, err := hex.DecodeString(tok); err != nil {
			t.Fatalf("token %q is not hex: %v", tok, err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestHashRefreshToken(t *testing.T) {
	tok, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	h := HashRefreshToken(tok)
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h))
	}
	if h != HashRefreshToken(tok) {
		t.Error("HashRefreshToken is not deterministic")
	}
	if h == tok {
		t.Error("hash must differ from the raw token")
	}
	if h == HashRefreshToken(tok+"0") {
		t.Error("different tokens produced the same hash")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	const token = "5f0c1d2e3a4b"
	stored := HashRefreshToken(token)
	flipped := []byte(stored)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}

	tests := []struct {
		name   string
		token  string
		stored string
		want   bool
	}{
		{"match", token, stored, true},
		{"wrong token", token + "x", stored, false},
		{"hash one char off", token, string(flipped), false},
		{"longer hash", token, stored + "a", false},
		{"upper-case hash", token, strings.ToUpper(stored), false},
		{"empty token", "", stored, false},
		{"empty hash", token, "", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshTokenHashEqual(tt.token, tt.stored); got != tt.want {
				t.Errorf("RefreshTokenHashEqual(%q, %q) = %v, want %v", tt.token, tt.stored, got, tt.want)
			}
		})
	}
}
