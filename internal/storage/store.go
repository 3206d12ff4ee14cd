package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// Well-known store keys. These form the persisted external interface of the
// security core; all values are JSON documents.
const (
	KeyUsers        = "eduquest_users"
	KeyCurrentUser  = "eduquest_user"
	KeySession      = "eduquest_session"
	KeySecurityLogs = "eduquest_security_logs"
)

// Store errors
var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("key not found")
	// ErrQuotaExceeded is returned when a write would exceed the store's
	// configured size bound.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store is an origin-scoped key-value store holding JSON documents.
// Implementations are memory, file, Redis and Postgres backed.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the raw value for key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the store.
	Close() error
}

// GetJSON reads key and unmarshals it into v. A corrupt value is treated as
// absent: the key is cleared and ErrNotFound returned, so callers never see a
// decode failure as fatal.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		_ = s.Delete(ctx, key)
		return ErrNotFound
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}
