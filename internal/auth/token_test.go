package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateSignedToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("test-secret")
	issued := time.Now()
	expires := issued.Add(time.Hour)

	tok, err := svc.GenerateSignedToken("usr_123", issued, expires)
	if err != nil {
		t.Fatalf("GenerateSignedToken error: %v", err)
	}
	if !IsValidTokenFormat(tok) {
		t.Fatalf("signed token fails format check: %q", tok)
	}

	payload, err := svc.VerifySignedToken(tok)
	if err != nil {
		t.Fatalf("VerifySignedToken error: %v", err)
	}
	if payload.UserID != "usr_123" {
		t.Fatalf("userID mismatch: got %q", payload.UserID)
	}
	if payload.IssuedAt != issued.UnixMilli() || payload.ExpiresAt != expires.UnixMilli() {
		t.Fatalf("timestamp mismatch: %+v", payload)
	}
}

func TestVerifySignedToken_Tampered(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("test-secret")
	tok, err := svc.GenerateSignedToken("usr_123", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateSignedToken error: %v", err)
	}

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	if _, err := svc.VerifySignedToken(tampered); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifySignedToken_WrongKey(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenService("key-one").GenerateSignedToken("u1", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateSignedToken error: %v", err)
	}

	if _, err := NewTokenService("key-two").VerifySignedToken(tok); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifySignedToken_Malformed(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("k")
	for _, tok := range []string{"", "a.b", "a.b.c.d", "..", "a..c"} {
		if _, err := svc.VerifySignedToken(tok); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("token %q: expected ErrMalformedToken, got %v", tok, err)
		}
	}
}

func TestGenerateToken_LegacyForm(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(tok))
	}
	if !IsValidTokenFormat(tok) {
		t.Fatalf("legacy token fails format check: %q", tok)
	}

	other, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if tok == other {
		t.Fatal("expected two generated tokens to differ")
	}
}

func TestIsValidTokenFormat(t *testing.T) {
	t.Parallel()

	valid := []string{
		strings.Repeat("ab", 32), // legacy hex
		"header.payload.sig",
	}
	for _, tok := range valid {
		if !IsValidTokenFormat(tok) {
			t.Errorf("expected %q to be valid", tok)
		}
	}

	invalid := []string{
		"",
		"short",
		strings.Repeat("zz", 32), // right length, not hex
		strings.Repeat("ab", 30), // hex, wrong length
		"only.two",
		"..",
		"a.b.",
	}
	for _, tok := range invalid {
		if IsValidTokenFormat(tok) {
			t.Errorf("expected %q to be invalid", tok)
		}
	}
}
