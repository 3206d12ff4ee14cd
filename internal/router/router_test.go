package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/auth"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/handler"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/middleware"
	"github.com/eduquest/eduquest/internal/ratelimit"
	"github.com/eduquest/eduquest/internal/repository"
	"github.com/eduquest/eduquest/internal/service"
	"github.com/eduquest/eduquest/internal/session"
	"github.com/eduquest/eduquest/internal/storage"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Security: config.SecurityConfig{
			Password: config.PasswordConfig{
				MinLength:  6,
				Iterations: 1000,
				SaltLength: 16,
				KeyLength:  32,
			},
			Session: config.SessionConfig{
				DefaultTTL:                  24 * time.Hour,
				PersistentTTL:               720 * time.Hour,
				OnLoadRefreshThreshold:      2 * time.Hour,
				PeriodicRefreshThreshold:    5 * time.Minute,
				PeriodicPersistentThreshold: 24 * time.Hour,
				SecretKey:                   "test-key",
			},
		},
		Audit: config.AuditConfig{Capacity: 100, PersistLimit: 10},
	}

	store := storage.NewMemory()
	log := logger.Nop()
	userRepo := repository.NewUserRepository(store)
	sessRepo := repository.NewSessionRepository(store)
	tokens := auth.NewTokenService(cfg.Security.Session.SecretKey)
	auditLog := audit.NewSecurityLogger(cfg.Audit, store, log)
	limiter := ratelimit.New(ratelimit.DefaultConfig(), log)
	sessions := session.NewManager(cfg.Security.Session, sessRepo, tokens, auditLog, log)
	authSvc := service.NewAuthService(userRepo, sessRepo, sessions, limiter, auditLog, cfg, log)

	h := handler.New(store, log, cfg, authSvc, sessions, auditLog)
	mw := middleware.New(sessions, auditLog, log, cfg)

	return New(h, mw, log)
}

// The JSON API authenticates with a bearer token, so its routes must not
// demand the double-submit CSRF token meant for browser form posts.
func TestRouter_APIRoutesExemptFromCSRF(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"username":"alice","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	sess := body["session"].(map[string]any)
	token, _ := sess["token"].(string)
	require.NotEmpty(t, token)

	// The bearer token reaches protected routes without a CSRF handshake.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/csrf", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["csrfToken"])
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
