package eduquest

import (
	"context"
	"net/http"
	"net/http/httptest"
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
	"github.com/eduquest/eduquest/internal/router"
	"github.com/eduquest/eduquest/internal/service"
	"github.com/eduquest/eduquest/internal/session"
	"github.com/eduquest/eduquest/internal/storage"
)

// newTestServer runs the complete server stack, middleware included, so the
// client is exercised against exactly what a deployment serves.
func newTestServer(t *testing.T) *httptest.Server {
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

	srv := httptest.NewServer(router.New(h, mw, log))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AuthRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	c := NewClient(Config{BaseURL: srv.URL})
	ctx := context.Background()

	reg, err := c.Register(ctx, RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, reg.Session.Token)
	assert.Equal(t, "alice", reg.User.Username)

	user, err := c.ValidateToken(ctx, reg.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)

	require.NoError(t, c.Logout(ctx, reg.Session.Token))

	_, err = c.ValidateToken(ctx, reg.Session.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestClient_LoginErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	c := NewClient(Config{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := c.Register(ctx, RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = c.Login(ctx, LoginRequest{Username: "alice", Password: "wrong-password"})
	apiErr, ok := IsAPIError(err)
	require.True(t, ok, err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid_credentials", apiErr.Code)

	resp, err := c.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Session.Token)
}
