package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store persisted as a single JSON document on disk, mirroring the
// one-profile storage model the platform was built around. Writes are atomic
// (write to a temp file, then rename) and bounded by an optional byte quota.
type File struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	data     map[string]json.RawMessage
}

// NewFile opens or creates a file store at path. maxBytes bounds the
// serialized document; zero disables the bound. An unreadable or corrupt file
// is treated as empty rather than fatal.
func NewFile(path string, maxBytes int64) (*File, error) {
	f := &File{
		path:     path,
		maxBytes: maxBytes,
		data:     make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(raw, &f.data); err != nil {
		// Corrupt store starts over empty.
		f.data = make(map[string]json.RawMessage)
	}

	return f, nil
}

// Get returns the value for key, or ErrNotFound.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set writes the value for key and flushes the document to disk.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	prev, hadPrev := f.data[key]
	v := make(json.RawMessage, len(value))
	copy(v, value)
	f.data[key] = v

	if err := f.flush(); err != nil {
		// Roll back so the in-memory view matches disk.
		if hadPrev {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// Delete removes key and flushes the document to disk.
func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.flush()
}

// Close flushes any pending state.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flush()
}

// flush writes the document atomically. Caller holds the lock.
func (f *File) flush() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if f.maxBytes > 0 && int64(len(raw)) > f.maxBytes {
		return ErrQuotaExceeded
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".eduquest-store-*")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close store file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
