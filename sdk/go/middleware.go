package eduquest

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

// userContextKey stores the validated *User in the request context.
const userContextKey contextKey = "eduquest_user"

// UserFromContext returns the validated user placed in the context by
// RequireAuth, or nil.
func UserFromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(userContextKey).(*User); ok {
		return u
	}
	return nil
}

// TokenFromRequest extracts the bearer token from the Authorization header.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAuth is net/http middleware that validates the request's session
// token against the EduQuest server and attaches the user to the context.
// Requests without a valid token receive a 401.
func (c *Client) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			unauthorized(w, "Authentication required")
			return
		}

		user, err := c.ValidateToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrNoToken) {
				unauthorized(w, "The session token is invalid or expired")
				return
			}
			http.Error(w, `{"error":{"code":"internal_error","message":"Token validation failed"}}`, http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the user to the context when a valid token is
// present, and passes the request through untouched otherwise.
func (c *Client) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := TokenFromRequest(r); token != "" {
			if user, err := c.ValidateToken(r.Context(), token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"unauthorized","message":"` + message + `"}}`))
}
