package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/eduquest/eduquest/internal/config"
)

// Postgres is a Store backed by a single kv_entries table. The schema is
// managed by cmd/migrate.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a new PostgreSQL-backed store.
func NewPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 4)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// DB exposes the underlying connection for the migration tool.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Get returns the value for key, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv_entries WHERE key = $1`
	var value []byte
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Set writes the value for key.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3
	`
	if _, err := p.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_entries WHERE key = $1`
	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// HealthCheck verifies the database connection is healthy
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
