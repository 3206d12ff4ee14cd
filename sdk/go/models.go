package eduquest

import "time"

// User represents an EduQuest learner account returned by the API.
// The gamification fields are owned by the content layer and passed through.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Level     int       `json:"level"`
	XP        int       `json:"xp"`
	Streak    int       `json:"streak"`
	Badges    []string  `json:"badges"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the active session returned alongside auth responses.
type Session struct {
	Token        string    `json:"token"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Persistent   bool      `json:"persistent"`
	RefreshCount int       `json:"refreshCount"`
}

// RegisterRequest contains the data for creating a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest contains the credentials for authentication.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// SecurityEvent is an entry from the security log endpoint.
type SecurityEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"eventType"`
	Level     string         `json:"level"`
	SessionID string         `json:"sessionId,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// SecurityLogs wraps the security log listing.
type SecurityLogs struct {
	Events []SecurityEvent `json:"events"`
	Count  int             `json:"count"`
}

// SecuritySummary is the aggregate security posture.
type SecuritySummary struct {
	Total         int             `json:"total"`
	ByType        map[string]int  `json:"byType"`
	RecentThreats []SecurityEvent `json:"recentThreats"`
	SystemHealth  string          `json:"systemHealth"`
}

// SessionStats is the monitoring projection of the active session.
type SessionStats struct {
	Active       bool       `json:"active"`
	UserID       string     `json:"userId,omitempty"`
	IssuedAt     *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Persistent   bool       `json:"persistent"`
	RefreshCount int        `json:"refreshCount"`
}
