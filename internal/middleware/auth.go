package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Context keys for authenticated user data
const (
	UserIDKey contextKey = "user_id"
)

// Auth validates the bearer token against the active session. The token must
// match the stored session exactly; the session itself is validated (and
// possibly refreshed) on the way.
func (m *Middleware) Auth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				http.Error(w, `{"error":{"code":"unauthorized","message":"Authentication required"}}`, http.StatusUnauthorized)
				return
			}

			// Match the presented token against the stored session before
			// validating, since validation may rotate the token. Constant
			// time compare; the token is a credential.
			current, err := m.sessions.Current(r.Context())
			if err != nil {
				http.Error(w, `{"error":{"code":"unauthorized","message":"Authentication required"}}`, http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(tokenString), []byte(current.Token)) != 1 {
				http.Error(w, `{"error":{"code":"token_mismatch","message":"The token does not match the active session"}}`, http.StatusUnauthorized)
				return
			}

			sess, err := m.sessions.Validate(r.Context())
			if err != nil {
				m.log.Debug().Err(err).Msg("session validation failed")
				http.Error(w, `{"error":{"code":"session_invalid","message":"The session is invalid or expired"}}`, http.StatusUnauthorized)
				return
			}

			// Validation may have rotated the token. The rotated token is
			// returned in a response header so the client can adopt it; the
			// presented one stops matching on the next request.
			if sess.Token != tokenString {
				w.Header().Set("X-Session-Token", sess.Token)
			}

			ctx := context.WithValue(r.Context(), UserIDKey, sess.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
