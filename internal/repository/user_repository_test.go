package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/storage"
)

func testUser(id, username string) *model.User {
	return model.NewUser(id, username, "aa:bb", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(storage.NewMemory())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testUser("usr_1", "alice")))

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", got.ID)
	assert.Equal(t, "aa:bb", got.PasswordHash, "the stored record keeps the hash")

	byID, err := repo.GetByID(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestUserRepository_CaseInsensitiveLookup(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(storage.NewMemory())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testUser("usr_1", "Alice")))

	got, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", got.ID)

	err = repo.Create(ctx, testUser("usr_2", "alice"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUserRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(storage.NewMemory())
	ctx := context.Background()

	_, err := repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := repo.ExistsByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_Update(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(storage.NewMemory())
	ctx := context.Background()

	u := testUser("usr_1", "alice")
	require.NoError(t, repo.Create(ctx, u))

	u.XP = 250
	u.Level = 2
	require.NoError(t, repo.Update(ctx, u))

	got, err := repo.GetByID(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, 250, got.XP)
	assert.Equal(t, 2, got.Level)

	err = repo.Update(ctx, testUser("usr_missing", "ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_CorruptCollectionTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyUsers, []byte("{{ corrupt")))

	repo := NewUserRepository(store)
	_, err := repo.GetByUsername(ctx, "anyone")
	assert.ErrorIs(t, err, ErrNotFound)

	// And the collection is writable again.
	require.NoError(t, repo.Create(ctx, testUser("usr_1", "alice")))
}

func TestSessionRepository_SingleSlot(t *testing.T) {
	t.Parallel()

	repo := NewSessionRepository(storage.NewMemory())
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &model.Session{Token: "t1", UserID: "usr_1"}
	require.NoError(t, repo.Put(ctx, first))

	second := &model.Session{Token: "t2", UserID: "usr_2"}
	require.NoError(t, repo.Put(ctx, second))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "usr_2", got.UserID, "a second login overwrites the slot")

	require.NoError(t, repo.Delete(ctx))
	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository_CurrentUserOmitsHash(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	repo := NewSessionRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.PutCurrentUser(ctx, testUser("usr_1", "alice")))

	raw, err := store.Get(ctx, storage.KeyCurrentUser)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "aa:bb", "the denormalized user must not serialize the hash")

	got, err := repo.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.PasswordHash)
}
