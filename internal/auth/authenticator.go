package auth

import (
	"crypto/subtle"
	"fmt"
	"time"
)

// Authenticator checks the administrator's credentials and issues tokens.
type Authenticator struct {
	username     string
	passwordHash string
	issuer       *Issuer
}

// NewAuthenticator creates an Authenticator for one account. The hash must
// be a PHC-format Argon2id string as produced by HashPassword.
func NewAuthenticator(username, passwordHash string, issuer *Issuer) (*Authenticator, error) {
	if _, _, _, err := decodePHC(passwordHash); err != nil {
		return nil, err
	}
	return &Authenticator{username: username, passwordHash: passwordHash, issuer: issuer}, nil
}

// Login verifies the credentials and returns a signed access token and
// its expiry.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	// The hash is computed even for an unknown user so both paths cost the same.
	passOK, err := VerifyPassword(password, a.passwordHash)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("verifying password: %w", err)
	}
	if !userOK || !passOK {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.issuer.Issue(a.username)
}

// Verify validates a bearer token and returns its claims.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	return a.issuer.Parse(token)
}
