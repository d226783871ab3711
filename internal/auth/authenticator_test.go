package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	a, err := NewAuthenticator("admin", hash, newTestIssuer(t, time.Minute))
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	return a
}

func TestLogin(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "admin", "s3cret", nil},
		{"wrong password", "admin", "nope", ErrInvalidCredentials},
		{"unknown user", "root", "s3cret", ErrInvalidCredentials},
		{"empty", "", "", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := a.Login(tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			claims, err := a.Verify(token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Username() != "admin" {
				t.Errorf("Username() = %q, want admin", claims.Username())
			}
		})
	}
}

func TestNewAuthenticator_BadHash(t *testing.T) {
	_, err := NewAuthenticator("admin", "plaintext", newTestIssuer(t, time.Minute))
	if !errors.Is(err, ErrInvalidHash) {
		t.Errorf("NewAuthenticator() error = %v, want ErrInvalidHash", err)
	}
}
