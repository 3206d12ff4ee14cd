package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/eduquest/eduquest/internal/model"
)

// Recover turns a handler panic into a 500 response. A panic on the security
// surface is itself a security signal, so it is booked as a security_violation
// event in addition to the error log.
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				m.log.Error().
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Str("request_id", GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("panic recovered")

				m.audit.Log(model.EventSecurityViolation, map[string]any{
					"reason":    "handler_panic",
					"panic":     fmt.Sprint(err),
					"path":      r.URL.Path,
					"method":    r.Method,
					"userAgent": r.UserAgent(),
				}, model.LevelError)

				http.Error(w, `{"error":{"code":"internal_error","message":"An unexpected error occurred"}}`, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
