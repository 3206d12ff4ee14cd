package middleware

import (
	"crypto/rand"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
)

// SecurityHeaders sets the standard browser hardening headers on every
// response.
func (m *Middleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// CORS allows cross-origin requests from the configured origins
func (m *Middleware) CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-CSRF-Token")
					w.Header().Set("Access-Control-Expose-Headers", "X-Session-Token, X-Request-ID")
					break
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRF wraps the handler in double-submit CSRF protection. Browser form posts
// fetch the token from the csrf endpoint and echo it in X-CSRF-Token.
//
// The JSON API under /api/v1/ is exempt from the check: it authenticates with
// an explicit bearer token, never an ambient cookie, so a forged cross-site
// request gains nothing. The token endpoint still issues tokens for any
// cookie-backed form surface mounted alongside the API.
func (m *Middleware) CSRF(next http.Handler) http.Handler {
	key := []byte(m.cfg.CSRF.AuthKey)
	if len(key) == 0 {
		// Ephemeral key: tokens do not survive a restart, which is fine for
		// a single-instance deployment.
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			m.log.Fatal().Err(err).Msg("failed to generate CSRF key")
		}
	}

	protect := csrf.Protect(
		key,
		csrf.Secure(m.cfg.CSRF.Secure),
		csrf.Path("/"),
		csrf.RequestHeader("X-CSRF-Token"),
	)
	inner := protect(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Safe methods are never checked and still need the middleware to
		// mint tokens, so only state-changing API calls are skipped.
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if strings.HasPrefix(r.URL.Path, "/api/v1/") {
				r = csrf.UnsafeSkipCheck(r)
			}
		}
		inner.ServeHTTP(w, r)
	})
}
