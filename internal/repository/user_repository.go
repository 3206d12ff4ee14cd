package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/storage"
)

// userRecord is the stored form of a user, including the password hash that
// model.User deliberately never serializes.
type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Level        int       `json:"level"`
	XP           int       `json:"xp"`
	Streak       int       `json:"streak"`
	Badges       []string  `json:"badges"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toRecord(u *model.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Level:        u.Level,
		XP:           u.XP,
		Streak:       u.Streak,
		Badges:       u.Badges,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromRecord(r userRecord) *model.User {
	return &model.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Level:        r.Level,
		XP:           r.XP,
		Streak:       r.Streak,
		Badges:       r.Badges,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// UserRepository persists user records as a JSON collection in the key-value
// store. Accounts are created on registration and never deleted in-app.
type UserRepository struct {
	store storage.Store
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(store storage.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create appends a new user. Fails with ErrAlreadyExists on a username clash.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	records, err := r.load(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if strings.EqualFold(rec.Username, user.Username) {
			return ErrAlreadyExists
		}
	}

	records = append(records, toRecord(user))
	return r.save(ctx, records)
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	records, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if strings.EqualFold(rec.Username, username) {
			return fromRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	records, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.ID == id {
			return fromRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// ExistsByUsername checks whether a username is taken.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update replaces the stored record matching user.ID.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	records, err := r.load(ctx)
	if err != nil {
		return err
	}

	for i, rec := range records {
		if rec.ID == user.ID {
			records[i] = toRecord(user)
			return r.save(ctx, records)
		}
	}
	return ErrNotFound
}

// load reads the user collection. A missing or corrupt collection is empty.
func (r *UserRepository) load(ctx context.Context) ([]userRecord, error) {
	var records []userRecord
	err := storage.GetJSON(ctx, r.store, storage.KeyUsers, &records)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return records, nil
}

func (r *UserRepository) save(ctx context.Context, records []userRecord) error {
	if err := storage.SetJSON(ctx, r.store, storage.KeyUsers, records); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}
