package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"golang.org/x/crypto/argon2"
)

var phcPattern = regexp.MustCompile(`^\$argon2id\$v=19\$m=65536,t=3,p=1\$[A-Za-z0-9+/]{22}\$[A-Za-z0-9+/]{43}$`)

// ─── Hashing ────────────────────────────────────────────────────────

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !phcPattern.MatchString(hash) {
		t.Errorf("HashPassword() = %q, not a PHC argon2id string", hash)
	}

	again, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == again {
		t.Error("two hashes of the same password share a salt")
	}
}

// ─── Verification ───────────────────────────────────────────────────

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "s3cret", true},
		{"wrong", "s3cret!", false},
		{"case differs", "S3CRET", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, hash)
			if err != nil {
				t.Fatalf("VerifyPassword() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

// A hash produced with weaker parameters must still verify, so stored
// hashes survive a parameter change.
func TestVerifyPasswordUsesStoredParameters(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte("legacy"), salt, 1, 8*1024, 2, 24)
	hash := fmt.Sprintf("$argon2id$v=19$m=8192,t=1,p=2$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	ok, err := VerifyPassword("legacy", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword() = %v, %v; want true, nil", ok, err)
	}
}

func TestVerifyPasswordInvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "hunter2"},
		{"bcrypt", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"},
		{"other algorithm", "$argon2i$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaA"},
		{"missing hash field", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ"},
		{"old version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaA"},
		{"garbled params", "$argon2id$v=19$memory$c2FsdHNhbHQ$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA"},
		{"bad hash", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$***"},
		{"empty hash", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword("password", tt.hash)
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("VerifyPassword() error = %v, want ErrInvalidHash", err)
			}
			if ok {
				t.Error("VerifyPassword() = true for an invalid hash")
			}
		})
	}
}
