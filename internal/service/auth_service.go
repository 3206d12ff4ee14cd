package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/auth"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/ratelimit"
	"github.com/eduquest/eduquest/internal/repository"
	"github.com/eduquest/eduquest/internal/session"
)

// Common service errors.
//
// ErrInvalidCredentials is deliberately the same for an unknown username and
// a wrong password, so callers cannot enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// RateLimitError reports a throttled login attempt with remaining-time
// context so the caller can render a lockout countdown.
type RateLimitError struct {
	Reason        string
	RemainingTime time.Duration
}

func (e *RateLimitError) Error() string {
	minutes := int(e.RemainingTime.Minutes()) + 1
	if e.Reason == ratelimit.ReasonAccountLocked {
		return fmt.Sprintf("account is temporarily locked, try again in %d minutes", minutes)
	}
	return fmt.Sprintf("too many failed attempts, try again in %d minutes", minutes)
}

type contextKey string

const clientInfoKey contextKey = "client_info"

type clientInfo struct {
	IP        string
	UserAgent string
}

// WithClientInfo attaches the request's client address and user agent to the
// context so the security events emitted downstream carry them.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey, clientInfo{IP: ip, UserAgent: userAgent})
}

// eventData merges the context's client metadata into an event payload. The
// userAgent key is promoted onto the event itself by the security logger.
func eventData(ctx context.Context, data map[string]any) map[string]any {
	if ci, ok := ctx.Value(clientInfoKey).(clientInfo); ok {
		if ci.UserAgent != "" {
			data["userAgent"] = ci.UserAgent
		}
		if ci.IP != "" {
			data["ip"] = ci.IP
		}
	}
	return data
}

// AuthService handles registration, login and logout, tying the credential
// store, rate limiter, session manager and security logger together.
type AuthService struct {
	users    *repository.UserRepository
	sessions *session.Manager
	limiter  *ratelimit.Limiter
	audit    *audit.SecurityLogger
	sessRepo *repository.SessionRepository
	params   *auth.PBKDF2Params
	cfg      *config.Config
	log      *logger.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users *repository.UserRepository,
	sessRepo *repository.SessionRepository,
	sessions *session.Manager,
	limiter *ratelimit.Limiter,
	auditLog *audit.SecurityLogger,
	cfg *config.Config,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessRepo: sessRepo,
		sessions: sessions,
		limiter:  limiter,
		audit:    auditLog,
		params: auth.NewParams(
			cfg.Security.Password.Iterations,
			cfg.Security.Password.SaltLength,
			cfg.Security.Password.KeyLength,
		),
		cfg: cfg,
		log: log.WithComponent("auth_service"),
		now: time.Now,
	}
}

// SetClock overrides the service's time source, for tests.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// Register creates a new account and immediately establishes a session
// (registration implies login).
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	username = strings.TrimSpace(username)

	// Validation failures surface directly; they are not security events.
	if err := auth.ValidateUsername(username); err != nil {
		return nil, nil, err
	}
	if err := auth.ValidatePassword(password, s.cfg.Security.Password.MinLength); err != nil {
		return nil, nil, err
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, nil, ErrUsernameTaken
	}

	passwordHash, err := auth.HashPassword(password, s.params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.NewUser(generateID("usr"), username, passwordHash, s.now())
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	sess, err := s.establishSession(ctx, user, false)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Log(model.EventRegistration, eventData(ctx, map[string]any{
		"identifier": auth.SanitizeIdentifier(username),
		"userId":     user.ID,
	}), model.LevelInfo)

	s.log.Info().Str("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, sess, nil
}

// Login authenticates a user. The rate limiter is consulted before any
// credential lookup; every failure records an attempt, and a success clears
// the identifier's throttling state.
func (s *AuthService) Login(ctx context.Context, username, password string, rememberMe bool) (*model.User, *model.Session, error) {
	username = strings.TrimSpace(username)
	identifier := auth.SanitizeIdentifier(username)

	decision := s.limiter.Check(identifier)
	if !decision.Allowed {
		eventType := model.EventRateLimited
		if decision.Reason == ratelimit.ReasonAccountLocked {
			eventType = model.EventAccountLocked
		}
		s.audit.Log(eventType, eventData(ctx, map[string]any{
			"identifier":  identifier,
			"remainingMs": decision.RemainingTime.Milliseconds(),
		}), model.LevelWarn)
		return nil, nil, &RateLimitError{
			Reason:        decision.Reason,
			RemainingTime: decision.RemainingTime,
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown user and bad password must be indistinguishable.
			s.recordLoginFailure(ctx, identifier, "unknown_user")
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash, s.params)
	if err != nil {
		s.recordLoginFailure(ctx, identifier, "verify_error")
		return nil, nil, ErrInvalidCredentials
	}
	if !match {
		s.recordLoginFailure(ctx, identifier, "wrong_password")
		return nil, nil, ErrInvalidCredentials
	}

	// Success clears the identifier's throttling state, exactly once.
	s.limiter.Clear(identifier)

	sess, err := s.establishSession(ctx, user, rememberMe)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Log(model.EventLoginSuccess, eventData(ctx, map[string]any{
		"identifier": identifier,
		"userId":     user.ID,
		"persistent": rememberMe,
	}), model.LevelInfo)

	s.log.Info().Str("user_id", user.ID).Bool("remember_me", rememberMe).Msg("user logged in")
	return user, sess, nil
}

// Logout revokes the active session eagerly.
func (s *AuthService) Logout(ctx context.Context) error {
	data := map[string]any{}
	if sess, err := s.sessions.Current(ctx); err == nil {
		data["userId"] = sess.UserID
		data["durationMs"] = s.now().Sub(sess.IssuedAt).Milliseconds()
	}

	if err := s.sessions.Revoke(ctx); err != nil {
		return err
	}

	s.audit.Log(model.EventLogout, eventData(ctx, data), model.LevelInfo)
	return nil
}

// CurrentUser returns the logged-in user, validating (and possibly
// refreshing) the stored session on the way. An absent, expired or corrupt
// session reads as logged out.
func (s *AuthService) CurrentUser(ctx context.Context) (*model.User, error) {
	if _, err := s.sessions.Validate(ctx); err != nil {
		return nil, ErrNotLoggedIn
	}

	user, err := s.sessRepo.GetCurrentUser(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	return user, err
}

// SessionStats returns the dashboard projection of the active session.
func (s *AuthService) SessionStats(ctx context.Context) model.SessionStats {
	return s.sessions.Stats(ctx)
}

// establishSession mints a session and stores the denormalized user copy.
func (s *AuthService) establishSession(ctx context.Context, user *model.User, persistent bool) (*model.Session, error) {
	sess, err := s.sessions.Create(ctx, user.ID, persistent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.sessRepo.PutCurrentUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store current user: %w", err)
	}
	return sess, nil
}

// recordLoginFailure books the failed attempt and emits the event.
func (s *AuthService) recordLoginFailure(ctx context.Context, identifier, reason string) {
	s.limiter.RecordFailure(identifier)
	s.audit.Log(model.EventLoginFailed, eventData(ctx, map[string]any{
		"identifier": identifier,
		"reason":     reason,
	}), model.LevelWarn)
}

func generateID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + id[:26]
}
