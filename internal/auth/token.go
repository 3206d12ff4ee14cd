package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Token errors
var (
	ErrMalformedToken = fmt.Errorf("malformed token")
	ErrBadSignature   = fmt.Errorf("token signature mismatch")
)

// legacyTokenLength is the hex length of the flat, unsigned token form.
const legacyTokenLength = 64

// TokenService mints and verifies session tokens.
//
// Two forms exist: an opaque 64-hex random token (legacy form) and a signed
// "header.payload.signature" form. The signature is a keyed, order-sensitive
// checksum over secretKey+data+secretKey with the key shipped in local
// configuration. It detects accidental corruption of a locally stored token;
// it is NOT a cryptographic MAC and provides no protection against an
// adversary who can read the configuration.
type TokenService struct {
	secretKey string
}

// NewTokenService creates a new TokenService.
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{secretKey: secretKey}
}

// TokenPayload is the claims section of a signed token.
type TokenPayload struct {
	UserID    string `json:"sub"`
	IssuedAt  int64  `json:"iat"` // epoch milliseconds
	ExpiresAt int64  `json:"exp"` // epoch milliseconds
	Nonce     string `json:"nonce"`
}

type tokenHeader struct {
	Alg  string `json:"alg"`
	Type string `json:"typ"`
}

// GenerateToken returns an opaque token from a cryptographically secure
// random source (the legacy flat form).
func GenerateToken() (string, error) {
	b := make([]byte, legacyTokenLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSignedToken mints a signed session token for the given user.
func (s *TokenService) GenerateSignedToken(userID string, issuedAt, expiresAt time.Time) (string, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	header, err := json.Marshal(tokenHeader{Alg: "EQS1", Type: "session"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}
	payload, err := json.Marshal(TokenPayload{
		UserID:    userID,
		IssuedAt:  issuedAt.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
		Nonce:     hex.EncodeToString(nonce),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	data := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	return data + "." + s.sign(data), nil
}

// VerifySignedToken checks the structure and checksum of a signed token and
// returns its payload. It does not check expiry; that is the session
// manager's decision.
func (s *TokenService) VerifySignedToken(token string) (*TokenPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedToken
	}

	data := parts[0] + "." + parts[1]
	if s.sign(data) != parts[2] {
		return nil, ErrBadSignature
	}

	rawPayload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}

	var payload TokenPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, ErrMalformedToken
	}
	return &payload, nil
}

// IsValidTokenFormat reports whether the token matches either expected
// structural form: three non-empty dot-separated segments (signed form) or a
// fixed-length hex string (legacy form). Malformed tokens must be rejected
// rather than silently accepted.
func IsValidTokenFormat(token string) bool {
	if token == "" {
		return false
	}

	parts := strings.Split(token, ".")
	if len(parts) == 3 {
		return parts[0] != "" && parts[1] != "" && parts[2] != ""
	}

	if len(token) != legacyTokenLength {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// sign computes the keyed checksum over secretKey+data+secretKey. The mixing
// is order-sensitive so reordered segments change the result, but this is a
// plain integrity check, not a cryptographic signature.
func (s *TokenService) sign(data string) string {
	var h uint64 = 5381
	mix := func(str string) {
		for i := 0; i < len(str); i++ {
			h = (h << 5) + h + uint64(str[i])
		}
	}
	mix(s.secretKey)
	mix(data)
	mix(s.secretKey)

	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(h >> (8 * i))
	}
	return hex.EncodeToString(out)
}
