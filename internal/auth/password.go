package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Params holds the key-derivation parameters.
// Defaults: SHA-256, 100,000 iterations, 16-byte salt, 256-bit key.
type PBKDF2Params struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// DefaultParams returns the standard PBKDF2 parameters.
func DefaultParams() *PBKDF2Params {
	return &PBKDF2Params{
		Iterations: 100000,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// NewParams creates custom PBKDF2 parameters.
func NewParams(iterations, saltLength, keyLength int) *PBKDF2Params {
	p := &PBKDF2Params{
		Iterations: iterations,
		SaltLength: saltLength,
		KeyLength:  keyLength,
	}
	if p.Iterations <= 0 {
		p.Iterations = 100000
	}
	if p.SaltLength <= 0 {
		p.SaltLength = 16
	}
	if p.KeyLength <= 0 {
		p.KeyLength = 32
	}
	return p
}

// HashPassword derives a PBKDF2-SHA256 digest of the password with a fresh
// random salt and encodes it as "saltHex:digestBase64". Two calls with the
// same password never produce the same stored value.
func HashPassword(password string, params *PBKDF2Params) (string, error) {
	if params == nil {
		params = DefaultParams()
	}

	// Generate a random salt
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, params.Iterations, params.KeyLength, sha256.New)

	return hex.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword checks if the provided password matches the stored hash.
func VerifyPassword(password, encodedHash string, params *PBKDF2Params) (bool, error) {
	if params == nil {
		params = DefaultParams()
	}

	salt, stored, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	key := pbkdf2.Key([]byte(password), salt, params.Iterations, len(stored), sha256.New)

	// Constant-time comparison
	return subtle.ConstantTimeCompare(stored, key) == 1, nil
}

// decodeHash splits a stored "saltHex:digestBase64" value.
func decodeHash(encodedHash string) ([]byte, []byte, error) {
	parts := strings.SplitN(encodedHash, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, fmt.Errorf("invalid hash format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	digest, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode digest: %w", err)
	}

	return salt, digest, nil
}
