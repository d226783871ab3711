package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for a malformed, expired or wrongly signed token.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidHash is returned when a stored password hash cannot be decoded.
	ErrInvalidHash = errors.New("auth: invalid password hash")

	// ErrSecretTooShort is returned when the JWT signing secret is too weak.
	ErrSecretTooShort = errors.New("auth: jwt secret too short")
)
