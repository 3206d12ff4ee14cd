package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/storage"
)

// SessionRepository persists the single active session and the denormalized
// copy of the logged-in user. The store holds one slot, not a per-user table:
// a concurrent login overwrites whatever was there (last write wins).
type SessionRepository struct {
	store storage.Store
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(store storage.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Get returns the active session, or ErrNotFound.
func (r *SessionRepository) Get(ctx context.Context) (*model.Session, error) {
	var session model.Session
	err := storage.GetJSON(ctx, r.store, storage.KeySession, &session)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// Put stores the session, replacing any previous one.
func (r *SessionRepository) Put(ctx context.Context, session *model.Session) error {
	if err := storage.SetJSON(ctx, r.store, storage.KeySession, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete clears the session slot.
func (r *SessionRepository) Delete(ctx context.Context) error {
	return r.store.Delete(ctx, storage.KeySession)
}

// GetCurrentUser returns the denormalized logged-in user, or ErrNotFound.
func (r *SessionRepository) GetCurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	err := storage.GetJSON(ctx, r.store, storage.KeyCurrentUser, &user)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return &user, nil
}

// PutCurrentUser stores the denormalized logged-in user.
func (r *SessionRepository) PutCurrentUser(ctx context.Context, user *model.User) error {
	if err := storage.SetJSON(ctx, r.store, storage.KeyCurrentUser, user); err != nil {
		return fmt.Errorf("failed to save current user: %w", err)
	}
	return nil
}

// DeleteCurrentUser clears the logged-in user slot.
func (r *SessionRepository) DeleteCurrentUser(ctx context.Context) error {
	return r.store.Delete(ctx, storage.KeyCurrentUser)
}
