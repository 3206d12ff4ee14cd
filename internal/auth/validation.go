package auth

import (
	"fmt"
	"strings"
)

// Username constraints: 3-20 characters, alphanumeric plus underscore.
const (
	usernameMinLength = 3
	usernameMaxLength = 20
)

// ValidationError marks an error as caused by bad user input rather than an
// internal failure, so callers can map it to a 400-class response.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ValidateUsername validates a username against the account rules.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLength {
		return validationErrorf("username must be at least %d characters long", usernameMinLength)
	}
	if len(username) > usernameMaxLength {
		return validationErrorf("username must be at most %d characters long", usernameMaxLength)
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return validationErrorf("username may only contain letters, digits and underscores")
		}
	}
	return nil
}

// ValidatePassword validates a password against the account rules.
func ValidatePassword(password string, minLength int) error {
	if minLength == 0 {
		minLength = 6
	}

	if len(password) < minLength {
		return validationErrorf("password must be at least %d characters long", minLength)
	}

	// Check maximum length (prevent DoS via extremely long passwords)
	if len(password) > 128 {
		return validationErrorf("password must be at most 128 characters long")
	}

	return nil
}

// SanitizeIdentifier normalizes a username into the identifier used as the
// rate limiter's bucket key: trimmed, lowercased, with anything outside the
// username alphabet dropped.
func SanitizeIdentifier(username string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(username)) {
		if isUsernameRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	}
	return false
}
