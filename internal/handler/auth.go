package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eduquest/eduquest/internal/auth"
	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/service"
	"github.com/eduquest/eduquest/internal/session"
)

// JSON helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// userResponse builds the public view of a user. The password hash never
// leaves the server; model.User does not serialize it, this keeps the shape
// explicit regardless.
func userResponse(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"username":  u.Username,
		"level":     u.Level,
		"xp":        u.XP,
		"streak":    u.Streak,
		"badges":    u.Badges,
		"createdAt": u.CreatedAt,
	}
}

func sessionResponse(s *model.Session) map[string]interface{} {
	return map[string]interface{}{
		"token":        s.Token,
		"issuedAt":     s.IssuedAt,
		"expiresAt":    s.ExpiresAt,
		"persistent":   s.Persistent,
		"refreshCount": s.RefreshCount,
	}
}

// --- Registration Handler ---

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles user registration. A successful registration establishes
// a session immediately.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Username and password are required")
		return
	}

	ctx := service.WithClientInfo(r.Context(), getClientIP(r), r.UserAgent())
	user, sess, err := h.authSvc.Register(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username_taken", "This username is already taken")
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			h.log.Error().Err(err).Msg("registration failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    userResponse(user),
		"session": sessionResponse(sess),
	})
}

// --- Login Handler ---

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Username and password are required")
		return
	}

	ctx := service.WithClientInfo(r.Context(), getClientIP(r), r.UserAgent())
	user, sess, err := h.authSvc.Login(ctx, req.Username, req.Password, req.RememberMe)
	if err != nil {
		var rateErr *service.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error": map[string]interface{}{
					"code":        rateErr.Reason,
					"message":     rateErr.Error(),
					"remainingMs": rateErr.RemainingTime.Milliseconds(),
				},
			})
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "The username or password is incorrect.")
		default:
			h.log.Error().Err(err).Msg("login failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    userResponse(user),
		"session": sessionResponse(sess),
	})
}

// --- Logout Handler ---

// Logout revokes the active session. Logging out without a session is not an
// error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := service.WithClientInfo(r.Context(), getClientIP(r), r.UserAgent())
	if err := h.authSvc.Logout(ctx); err != nil {
		h.log.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Logout failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// --- Session Handler ---

// GetSession validates the stored session and returns it, refreshing it when
// it is close to expiry.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Validate(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusUnauthorized, "no_session", "No active session")
		case errors.Is(err, session.ErrSessionExpired):
			writeError(w, http.StatusUnauthorized, "session_expired", "The session has expired")
		case errors.Is(err, session.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid_token", "The session token is invalid")
		default:
			h.log.Error().Err(err).Msg("session validation failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Session validation failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// GetCurrentUser returns the logged-in user's data
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.authSvc.CurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotLoggedIn) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		h.log.Error().Err(err).Msg("failed to get current user")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get user data")
		return
	}

	writeJSON(w, http.StatusOK, userResponse(user))
}

// isValidationError reports whether err came from input validation rather
// than an internal failure.
func isValidationError(err error) bool {
	var vErr *auth.ValidationError
	return errors.As(err, &vErr)
}
