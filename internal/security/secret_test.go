package security

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSecret(t *testing.T) {
	raw := strings.Repeat("k", MinSecretLength)
	dir := t.TempDir()
	path := filepath.Join(dir, "jwt.key")
	if err := os.WriteFile(path, []byte(raw+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	shortPath := filepath.Join(dir, "short.key")
	if err := os.WriteFile(shortPath, []byte("short"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"inline", raw, false},
		{"inline too short", "short", true},
		{"empty", "  ", true},
		{"base64", "base64:" + base64.StdEncoding.EncodeToString([]byte(raw)), false},
		{"base64 invalid", "base64:!!!", true},
		{"base64 too short", "base64:" + base64.StdEncoding.EncodeToString([]byte("abc")), true},
		{"file", "file:" + path, false},
		{"file too short", "file:" + shortPath, true},
		{"file missing", "file:" + filepath.Join(dir, "nope"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadSecret(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadSecret should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSecret: %v", err)
			}
			key, err := p.SigningSecret(context.Background())
			if err != nil {
				t.Fatalf("SigningSecret: %v", err)
			}
			if string(key) != raw {
				t.Errorf("key = %q, want %q", key, raw)
			}
		})
	}
}

func TestStaticSecret_TooShort(t *testing.T) {
	_, err := StaticSecret("abc").SigningSecret(context.Background())
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}
