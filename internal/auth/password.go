package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP 2025).
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16

	phcParts = 6
)

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// HashPassword hashes a plaintext password with Argon2id and returns it in
// PHC string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches the PHC-encoded hash.
// A hash that cannot be decoded yields an error wrapping ErrInvalidHash.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, hash, p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32
	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

func decodePHC(encoded string) (salt, hash []byte, p argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != phcParts || parts[0] != "" {
		return nil, nil, p, fmt.Errorf("%w: expected %d fields", ErrInvalidHash, phcParts)
	}
	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, p, fmt.Errorf("%w: version: %w", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil { //nolint:govet // shadow
		return nil, nil, p, fmt.Errorf("%w: parameters: %w", ErrInvalidHash, err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("%w: salt: %w", ErrInvalidHash, err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("%w: hash: %w", ErrInvalidHash, err)
	}
	if len(hash) == 0 {
		return nil, nil, p, fmt.Errorf("%w: empty hash", ErrInvalidHash)
	}
	return salt, hash, p, nil
}
