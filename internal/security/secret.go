package security

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
)

// MinSecretLength is the minimum HS256 key size in bytes.
const MinSecretLength = 32

// ErrInvalidKey is returned when a signing secret is missing, unreadable or too short.
var ErrInvalidKey = errors.New("invalid key")

// SecretProvider supplies the current access-token signing secret. Implementations may
// return a different secret after rotation; tokens signed with an older secret then fail validation.
type SecretProvider interface {
	SigningSecret(ctx context.Context) ([]byte, error)
}

// StaticSecret is a SecretProvider backed by a fixed key.
type StaticSecret []byte

// SigningSecret returns the fixed key.
func (s StaticSecret) SigningSecret(context.Context) ([]byte, error) {
	if len(s) < MinSecretLength {
		return nil, ErrInvalidKey
	}
	return []byte(s), nil
}

// FileSecret re-reads the key from Path on every call so a rotated file is picked up without restart.
type FileSecret struct {
	Path string
}

// SigningSecret reads and validates the key file.
func (f FileSecret) SigningSecret(context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	key := []byte(strings.TrimSpace(string(b)))
	if len(key) < MinSecretLength {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// LoadSecret builds a SecretProvider from a JWT_SECRET value: "file:<path>" reads a file,
// "base64:<data>" decodes standard base64, anything else is used as raw bytes.
func LoadSecret(s string) (SecretProvider, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, ErrInvalidKey
	case strings.HasPrefix(s, "file:"):
		p := FileSecret{Path: strings.TrimPrefix(s, "file:")}
		if _, err := p.SigningSecret(context.Background()); err != nil {
			return nil, err
		}
		return p, nil
	case strings.HasPrefix(s, "base64:"):
		key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "base64:"))
		if err != nil {
			return nil, ErrInvalidKey
		}
		if len(key) < MinSecretLength {
			return nil, ErrInvalidKey
		}
		return StaticSecret(key), nil
	default:
		if len(s) < MinSecretLength {
			return nil, ErrInvalidKey
		}
		return StaticSecret(s), nil
	}
}
