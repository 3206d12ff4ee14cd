package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	StartTimeKey contextKey = "start_time"
)

// maxRequestIDLen caps caller-supplied request IDs so a hostile header cannot
// bloat logs or security events.
const maxRequestIDLen = 64

// RequestID tags each request with an identifier in the same prefixed style
// as user and event IDs. A caller-supplied X-Request-ID is honored so events
// can be correlated across the browser client and this server.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if len(requestID) > maxRequestIDLen {
			requestID = requestID[:maxRequestIDLen]
		}
		if requestID == "" {
			requestID = "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Timing adds request timing to context
func (m *Middleware) Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), StartTimeKey, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetStartTime retrieves the start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}
