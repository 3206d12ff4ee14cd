package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/auth"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/repository"
	"github.com/eduquest/eduquest/internal/storage"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		DefaultTTL:                  24 * time.Hour,
		PersistentTTL:               720 * time.Hour,
		OnLoadRefreshThreshold:      2 * time.Hour,
		PeriodicRefreshThreshold:    5 * time.Minute,
		PeriodicPersistentThreshold: 24 * time.Hour,
		RefreshInterval:             2 * time.Minute,
		SecretKey:                   "test-integrity-key",
	}
}

func newTestManager(t *testing.T) (*Manager, *repository.SessionRepository, *time.Time) {
	t.Helper()

	store := storage.NewMemory()
	repo := repository.NewSessionRepository(store)
	tokens := auth.NewTokenService("test-integrity-key")
	auditLog := audit.NewSecurityLogger(config.AuditConfig{Capacity: 100, PersistLimit: 10}, nil, logger.Nop())

	m := NewManager(testSessionConfig(), repo, tokens, auditLog, logger.Nop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	return m, repo, &now
}

func TestCreate_DefaultSession(t *testing.T) {
	t.Parallel()

	m, repo, now := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	assert.Equal(t, "usr_1", sess.UserID)
	assert.False(t, sess.Persistent)
	assert.Equal(t, 0, sess.RefreshCount)
	assert.Equal(t, now.Add(24*time.Hour), sess.ExpiresAt)
	assert.True(t, auth.IsValidTokenFormat(sess.Token))

	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, stored.Token)
}

func TestCreate_PersistentSessionTTL(t *testing.T) {
	t.Parallel()

	m, _, now := newTestManager(t)

	sess, err := m.Create(context.Background(), "usr_1", true)
	require.NoError(t, err)
	assert.Equal(t, now.Add(720*time.Hour), sess.ExpiresAt)
}

func TestCreate_ReplacesExistingSession(t *testing.T) {
	t.Parallel()

	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)
	second, err := m.Create(ctx, "usr_2", false)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "usr_2", stored.UserID, "last login wins the single slot")
}

func TestValidate_NoSession(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	_, err := m.Validate(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestValidate_ExpiredSessionNeverValid(t *testing.T) {
	t.Parallel()

	m, repo, now := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	// One millisecond past expiry is expired; there is no grace period.
	*now = now.Add(24*time.Hour + time.Millisecond)
	_, err = m.Validate(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Expiry forces a cleanup of the stored slot.
	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestValidate_MalformedTokenCleansUp(t *testing.T) {
	t.Parallel()

	m, repo, now := newTestManager(t)
	ctx := context.Background()

	err := repo.Put(ctx, &model.Session{
		Token:     "garbage",
		UserID:    "usr_1",
		IssuedAt:  *now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = m.Validate(ctx)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestValidate_TamperedSignature(t *testing.T) {
	t.Parallel()

	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	sess.Token = sess.Token + "0"
	require.NoError(t, repo.Put(ctx, sess))

	_, err = m.Validate(ctx)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	m, _, now := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	// 90 minutes of lifetime left is under the 2-hour on-load threshold.
	*now = now.Add(24*time.Hour - 90*time.Minute)
	refreshed, err := m.Validate(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, created.Token, refreshed.Token, "refresh rotates the token")
	assert.Equal(t, 1, refreshed.RefreshCount)
	assert.Equal(t, now.Add(24*time.Hour), refreshed.ExpiresAt, "refresh grants a full TTL")
}

func TestValidate_NoRefreshWithAmpleLifetime(t *testing.T) {
	t.Parallel()

	m, _, now := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	validated, err := m.Validate(ctx)
	require.NoError(t, err)

	assert.Equal(t, created.Token, validated.Token)
	assert.Equal(t, 0, validated.RefreshCount)
}

func TestRefresh_IncrementsMonotonically(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		sess, err := m.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, sess.RefreshCount)
	}
}

func TestRevoke_ClearsSession(t *testing.T) {
	t.Parallel()

	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx))

	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Revoking again is a no-op, not an error.
	assert.NoError(t, m.Revoke(ctx))
}

func TestTick_NoopWhenLoggedOut(t *testing.T) {
	t.Parallel()

	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx))

	m.Tick(ctx)

	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTick_CleansUpExpiredSession(t *testing.T) {
	t.Parallel()

	m, repo, now := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	*now = now.Add(25 * time.Hour)
	m.Tick(ctx)

	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTick_PeriodicThresholdIsStricter(t *testing.T) {
	t.Parallel()

	m, repo, now := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "usr_1", false)
	require.NoError(t, err)

	// 90 minutes left: the on-load path would refresh, the periodic path
	// (5-minute threshold for default sessions) does not.
	*now = now.Add(24*time.Hour - 90*time.Minute)
	m.Tick(ctx)

	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.Token, stored.Token)
	assert.Equal(t, 0, stored.RefreshCount)

	// Within the last 5 minutes the periodic path refreshes too.
	*now = created.ExpiresAt.Add(-4 * time.Minute)
	m.Tick(ctx)

	stored, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RefreshCount)
}

func TestStats(t *testing.T) {
	t.Parallel()

	m, _, now := newTestManager(t)
	ctx := context.Background()

	stats := m.Stats(ctx)
	assert.False(t, stats.Active)

	_, err := m.Create(ctx, "usr_1", true)
	require.NoError(t, err)

	stats = m.Stats(ctx)
	assert.True(t, stats.Active)
	assert.Equal(t, "usr_1", stats.UserID)
	assert.True(t, stats.Persistent)
	assert.Equal(t, 720*time.Hour, stats.Remaining)

	*now = now.Add(721 * time.Hour)
	stats = m.Stats(ctx)
	assert.False(t, stats.Active)
}
