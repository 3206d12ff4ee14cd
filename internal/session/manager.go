package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/auth"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/repository"
)

// Session manager errors
var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session has expired")
	ErrInvalidToken   = errors.New("invalid session token")
)

// refreshPath distinguishes the two call sites that decide whether a session
// should be refreshed. They historically carried different thresholds; the
// asymmetry is preserved behind one policy function so it stays explicit
// instead of drifting further.
type refreshPath int

const (
	// pathOnLoad is the validation performed when a stored session is loaded.
	pathOnLoad refreshPath = iota
	// pathPeriodic is the background refresh timer.
	pathPeriodic
)

// Manager issues, validates, refreshes and expires the single active session.
//
// Lifecycle: absent -> active -> (refreshed)* -> expired | revoked. A refresh
// rotates the token, extends the expiry and increments RefreshCount. Expiry
// or a malformed token force a cleanup back to the logged-out state.
type Manager struct {
	mu       sync.Mutex
	cfg      config.SessionConfig
	sessions *repository.SessionRepository
	tokens   *auth.TokenService
	audit    *audit.SecurityLogger
	log      *logger.Logger
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

// NewManager creates a session Manager.
func NewManager(
	cfg config.SessionConfig,
	sessions *repository.SessionRepository,
	tokens *auth.TokenService,
	auditLog *audit.SecurityLogger,
	log *logger.Logger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: sessions,
		tokens:   tokens,
		audit:    auditLog,
		log:      log.WithComponent("session_manager"),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// SetClock overrides the manager's time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// TTL returns the session duration for the given persistence mode.
func (m *Manager) TTL(persistent bool) time.Duration {
	if persistent {
		return m.cfg.PersistentTTL
	}
	return m.cfg.DefaultTTL
}

// Create mints a new session for the user, replacing any existing one.
func (m *Manager) Create(ctx context.Context, userID string, persistent bool) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expiresAt := now.Add(m.TTL(persistent))

	token, err := m.tokens.GenerateSignedToken(userID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &model.Session{
		Token:        token,
		UserID:       userID,
		IssuedAt:     now,
		ExpiresAt:    expiresAt,
		Persistent:   persistent,
		RefreshCount: 0,
	}

	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	m.audit.Log(model.EventSessionCreated, map[string]any{
		"userId":     userID,
		"persistent": persistent,
		"expiresAt":  expiresAt.UnixMilli(),
	}, model.LevelInfo)

	m.log.Info().Str("user_id", userID).Bool("persistent", persistent).Msg("session created")
	return session, nil
}

// Validate is the on-load validation path: it checks the stored session's
// token structure, signature and expiry, refreshing it when the remaining
// lifetime falls below the on-load threshold. A malformed or expired session
// forces a cleanup and is never silently accepted.
func (m *Manager) Validate(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.sessions.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if !auth.IsValidTokenFormat(session.Token) {
		m.cleanup(ctx)
		m.audit.Log(model.EventTokenInvalid, map[string]any{
			"reason": "malformed",
		}, model.LevelWarn)
		return nil, ErrInvalidToken
	}

	// Only the signed form carries a verifiable payload; the legacy flat
	// form passes on structure alone.
	if strings.Count(session.Token, ".") == 2 {
		if _, err := m.tokens.VerifySignedToken(session.Token); err != nil {
			m.cleanup(ctx)
			m.audit.Log(model.EventTokenInvalid, map[string]any{
				"reason": "signature_mismatch",
			}, model.LevelWarn)
			return nil, ErrInvalidToken
		}
	}

	now := m.now()
	if session.IsExpired(now) {
		m.cleanup(ctx)
		m.audit.Log(model.EventSessionExpired, map[string]any{
			"userId": session.UserID,
		}, model.LevelInfo)
		return nil, ErrSessionExpired
	}

	if m.shouldRefresh(session, now, pathOnLoad) {
		return m.refresh(ctx, session)
	}
	return session, nil
}

// Refresh rotates the session token and extends the expiry.
func (m *Manager) Refresh(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.sessions.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if session.IsExpired(m.now()) {
		m.cleanup(ctx)
		m.audit.Log(model.EventSessionExpired, map[string]any{
			"userId": session.UserID,
		}, model.LevelInfo)
		return nil, ErrSessionExpired
	}

	return m.refresh(ctx, session)
}

// Revoke clears the persisted session and user eagerly, independent of
// expiry. Explicit logout path.
func (m *Manager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup(ctx)
	return nil
}

// Current returns the stored session without validating it.
func (m *Manager) Current(ctx context.Context) (*model.Session, error) {
	session, err := m.sessions.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSession
	}
	return session, err
}

// Stats returns the read-only projection for the monitoring dashboard.
func (m *Manager) Stats(ctx context.Context) model.SessionStats {
	session, err := m.sessions.Get(ctx)
	if err != nil {
		return model.SessionStats{Active: false}
	}

	now := m.now()
	issued := session.IssuedAt
	expires := session.ExpiresAt
	return model.SessionStats{
		Active:       !session.IsExpired(now),
		UserID:       session.UserID,
		IssuedAt:     &issued,
		ExpiresAt:    &expires,
		Persistent:   session.Persistent,
		RefreshCount: session.RefreshCount,
		Remaining:    session.Remaining(now),
	}
}

// SessionIDHint returns a truncated token for best-effort event correlation.
func (m *Manager) SessionIDHint() string {
	session, err := m.sessions.Get(context.Background())
	if err != nil || len(session.Token) < 12 {
		return ""
	}
	return session.Token[:12]
}

// Start launches the background refresh loop. While a session exists the
// timer refreshes it as it nears expiry; a session already past expiry is
// proactively cleaned up (the next tick after a logout is a no-op).
func (m *Manager) Start() {
	if m.cfg.RefreshInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Tick(context.Background())
			case <-m.done:
				return
			}
		}
	}()
}

// Stop terminates the refresh loop.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.done) })
}

// Tick runs one iteration of the periodic refresh decision.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.sessions.Get(ctx)
	if err != nil {
		// Nothing to do when logged out.
		return
	}

	now := m.now()
	if session.IsExpired(now) {
		m.cleanup(ctx)
		m.audit.Log(model.EventSessionExpired, map[string]any{
			"userId": session.UserID,
			"source": "refresh_timer",
		}, model.LevelInfo)
		m.log.Info().Str("user_id", session.UserID).Msg("expired session cleaned up by refresh timer")
		return
	}

	if m.shouldRefresh(session, now, pathPeriodic) {
		if _, err := m.refresh(ctx, session); err != nil {
			m.log.Error().Err(err).Msg("periodic session refresh failed")
		}
	}
}

// shouldRefresh is the single refresh-policy decision. The on-load and
// periodic paths use different thresholds on purpose; see refreshPath.
func (m *Manager) shouldRefresh(session *model.Session, now time.Time, path refreshPath) bool {
	remaining := session.Remaining(now)

	switch path {
	case pathOnLoad:
		return remaining < m.cfg.OnLoadRefreshThreshold
	case pathPeriodic:
		if session.Persistent {
			return remaining < m.cfg.PeriodicPersistentThreshold
		}
		return remaining < m.cfg.PeriodicRefreshThreshold
	}
	return false
}

// refresh mints a new token and expiry in place. Caller holds the lock.
func (m *Manager) refresh(ctx context.Context, session *model.Session) (*model.Session, error) {
	now := m.now()
	expiresAt := now.Add(m.TTL(session.Persistent))

	token, err := m.tokens.GenerateSignedToken(session.UserID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session.Token = token
	session.ExpiresAt = expiresAt
	session.RefreshCount++

	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	m.audit.Log(model.EventSessionRefreshed, map[string]any{
		"userId":       session.UserID,
		"refreshCount": session.RefreshCount,
	}, model.LevelInfo)

	m.log.Debug().
		Str("user_id", session.UserID).
		Int("refresh_count", session.RefreshCount).
		Msg("session refreshed")
	return session, nil
}

// cleanup clears both the session and the denormalized user slot. Caller
// holds the lock. Storage failures here are logged and otherwise ignored;
// cleanup must never crash the caller.
func (m *Manager) cleanup(ctx context.Context) {
	if err := m.sessions.Delete(ctx); err != nil {
		m.log.Error().Err(err).Msg("failed to clear session slot")
	}
	if err := m.sessions.DeleteCurrentUser(ctx); err != nil {
		m.log.Error().Err(err).Msg("failed to clear current user slot")
	}
}
