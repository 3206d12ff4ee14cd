package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery", DefaultParams())
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	parts := strings.SplitN(hash, ":", 2)
	if len(parts) != 2 {
		t.Fatalf("expected saltHex:digestBase64, got %q", hash)
	}

	ok, err := VerifyPassword("correct horse battery", hash, DefaultParams())
	if err != nil {
		t.Fatalf("VerifyPassword error: %v", err)
	}
	if !ok {
		t.Fatal("expected password to verify")
	}
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("right-password", DefaultParams())
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	ok, err := VerifyPassword("wrong-password", hash, DefaultParams())
	if err != nil {
		t.Fatalf("VerifyPassword error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashPassword_SaltUniqueness(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same-password", DefaultParams())
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	b, err := HashPassword("same-password", DefaultParams())
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	if a == b {
		t.Fatal("expected two hashes of the same password to differ")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	for _, hash := range []string{"", "no-separator", ":", "abc:", ":def", "zz:not-base64!!"} {
		if _, err := VerifyPassword("whatever", hash, DefaultParams()); err == nil {
			t.Errorf("expected error for malformed hash %q", hash)
		}
	}
}

func TestNewParams_Defaults(t *testing.T) {
	t.Parallel()

	p := NewParams(0, 0, 0)
	if p.Iterations != 100000 || p.SaltLength != 16 || p.KeyLength != 32 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
