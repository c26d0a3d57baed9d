// Package apikeys hashes and verifies client bearer tokens. No vector or
// ciphertext data ever flows through this package; it exists purely so
// ClientRecord.APIKeyHash never stores a recoverable credential.
package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// currentVersion is prefixed onto every hash so a future change to the
// derivation parameters can coexist with already-issued hashes.
const currentVersion = 1

const (
	pbkdf2Iterations = 100_000
	saltBytes        = 16
	keyBytes         = 32
)

// GenerateToken returns a fresh random bearer token, base64url-encoded.
func GenerateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("apikeys: generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Hash derives a versioned, salted PBKDF2 hash of token suitable for
// storage in ClientRecord.APIKeyHash. The stored string has the shape
// "v1$<salt-b64>$<hash-b64>".
func Hash(token string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("apikeys: generating salt: %w", err)
	}

	derived := pbkdf2.Key([]byte(token), salt, pbkdf2Iterations, keyBytes, sha256.New)

	return fmt.Sprintf("v%d$%s$%s",
		currentVersion,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived),
	), nil
}

// Verify reports whether token hashes to stored, using a constant-time
// comparison of the derived keys.
func Verify(token, stored string) (bool, error) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false, fmt.Errorf("apikeys: malformed stored hash")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[0], "v"))
	if err != nil || version != currentVersion {
		return false, fmt.Errorf("apikeys: unsupported hash version %q", parts[0])
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("apikeys: decoding salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("apikeys: decoding hash: %w", err)
	}

	got := pbkdf2.Key([]byte(token), salt, pbkdf2Iterations, keyBytes, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
