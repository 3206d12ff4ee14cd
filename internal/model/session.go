package model

import "time"

// Session represents the single active session for a storage profile.
// The store holds at most one of these; a second login overwrites the first.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"userId"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Persistent   bool      `json:"persistent"`
	RefreshCount int       `json:"refreshCount"`
}

// IsExpired reports whether the session expiry has passed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Remaining returns the time left before expiry, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.IsExpired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// SessionStats is the read-only projection served to the monitoring dashboard.
type SessionStats struct {
	Active       bool          `json:"active"`
	UserID       string        `json:"userId,omitempty"`
	IssuedAt     *time.Time    `json:"issuedAt,omitempty"`
	ExpiresAt    *time.Time    `json:"expiresAt,omitempty"`
	Persistent   bool          `json:"persistent"`
	RefreshCount int           `json:"refreshCount"`
	Remaining    time.Duration `json:"remainingMs"`
}
