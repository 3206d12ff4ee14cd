package model

import (
	"time"
)

// User represents a learner account. The gamification fields (level, XP,
// streak, badges) are an opaque payload owned by the content layer; the
// security core persists them untouched.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never expose password hash
	Level        int       `json:"level"`
	XP           int       `json:"xp"`
	Streak       int       `json:"streak"`
	Badges       []string  `json:"badges"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser returns a user seeded with the starting gamification payload.
func NewUser(id, username, passwordHash string, now time.Time) *User {
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Level:        1,
		XP:           0,
		Streak:       0,
		Badges:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
