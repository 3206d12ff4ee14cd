package model

import "time"

// EventLevel is the severity of a security event
type EventLevel string

const (
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
	LevelError EventLevel = "error"
)

// SecurityEvent is a structured entry in the security log
type SecurityEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"eventType"`
	Level     EventLevel     `json:"level"`
	SessionID string         `json:"sessionId,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Security event type constants
const (
	EventRegistration       = "registration"
	EventLoginSuccess       = "login_success"
	EventLoginFailed        = "login_failed"
	EventLogout             = "logout"
	EventAccountLocked      = "account_locked"
	EventRateLimited        = "rate_limit_exceeded"
	EventSessionCreated     = "session_created"
	EventSessionRefreshed   = "session_refreshed"
	EventSessionExpired     = "session_expired"
	EventTokenInvalid       = "token_invalid"
	EventStorageError       = "storage_error"
	EventSuspiciousActivity = "suspicious_activity"
	EventSecurityViolation  = "security_violation"
)

// SecurityEventTypes is the fixed set of event types that feed the per-type
// index used for threat analysis.
var SecurityEventTypes = map[string]bool{
	EventLoginFailed:        true,
	EventAccountLocked:      true,
	EventRateLimited:        true,
	EventTokenInvalid:       true,
	EventSessionExpired:     true,
	EventSuspiciousActivity: true,
	EventSecurityViolation:  true,
}

// IsThreat reports whether the event type counts toward the threat summary.
func IsThreat(eventType string) bool {
	return eventType == EventSuspiciousActivity || eventType == EventSecurityViolation
}
