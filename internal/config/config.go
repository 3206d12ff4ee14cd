package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Audit    AuditConfig    `mapstructure:"audit"`
	CSRF     CSRFConfig     `mapstructure:"csrf"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig selects and configures the key-value store backend.
// "memory" and "file" mirror the single-profile storage the platform was
// designed around; "redis" and "postgres" are shared-infrastructure backends.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
}

// FileConfig holds file store configuration
type FileConfig struct {
	Path string `mapstructure:"path"`
	// MaxBytes bounds the serialized store, like a storage quota.
	// Zero disables the bound.
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Password  PasswordConfig  `mapstructure:"password"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// PasswordConfig holds password hashing configuration
type PasswordConfig struct {
	MinLength  int `mapstructure:"min_length"`
	Iterations int `mapstructure:"iterations"`
	SaltLength int `mapstructure:"salt_length"`
	KeyLength  int `mapstructure:"key_length"`
}

// SessionConfig holds session lifetime and refresh configuration.
//
// The on-load validator and the periodic refresher intentionally carry
// separate refresh thresholds; both code paths existed with different values
// and the asymmetry is preserved as configuration rather than collapsed to a
// single number.
type SessionConfig struct {
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	PersistentTTL time.Duration `mapstructure:"persistent_ttl"`
	// OnLoadRefreshThreshold applies when a stored session is validated.
	OnLoadRefreshThreshold time.Duration `mapstructure:"onload_refresh_threshold"`
	// PeriodicRefreshThreshold applies to default sessions on the refresh timer.
	PeriodicRefreshThreshold time.Duration `mapstructure:"periodic_refresh_threshold"`
	// PeriodicPersistentThreshold applies to "remember me" sessions on the refresh timer.
	PeriodicPersistentThreshold time.Duration `mapstructure:"periodic_persistent_threshold"`
	RefreshInterval             time.Duration `mapstructure:"refresh_interval"`
	// SecretKey keys the token checksum. It lives in configuration on the
	// client side of the deployment, so the signature is tamper-evidence
	// against accidental corruption only, not a security boundary.
	SecretKey string `mapstructure:"secret_key"`
}

// RateLimitConfig holds failed-attempt throttling configuration
type RateLimitConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	Window          time.Duration `mapstructure:"window"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// AuditConfig holds security event logging configuration
type AuditConfig struct {
	Capacity         int           `mapstructure:"capacity"`
	PersistLimit     int           `mapstructure:"persist_limit"`
	Retention        time.Duration `mapstructure:"retention"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	AnalysisInterval time.Duration `mapstructure:"analysis_interval"`
	// BruteForceThreshold is the failed-login count per identifier within
	// BruteForceWindow that triggers a suspicious_activity event.
	BruteForceThreshold int           `mapstructure:"brute_force_threshold"`
	BruteForceWindow    time.Duration `mapstructure:"brute_force_window"`
	// DoSThreshold is the rate-limit event count within DoSWindow that
	// triggers a suspicious_activity event.
	DoSThreshold int           `mapstructure:"dos_threshold"`
	DoSWindow    time.Duration `mapstructure:"dos_window"`
}

// CSRFConfig holds CSRF protection configuration
type CSRFConfig struct {
	// AuthKey is the 32-byte key used by the CSRF cookie; generated when empty.
	AuthKey string `mapstructure:"auth_key"`
	Secure  bool   `mapstructure:"secure"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/eduquest")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("EDUQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file.path", "eduquest_store.json")
	v.SetDefault("storage.file.max_bytes", 5*1024*1024)

	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.name", "eduquest")
	v.SetDefault("storage.database.user", "eduquest")
	v.SetDefault("storage.database.password", "")
	v.SetDefault("storage.database.ssl_mode", "disable")
	v.SetDefault("storage.database.max_connections", 25)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Password hashing defaults
	v.SetDefault("security.password.min_length", 6)
	v.SetDefault("security.password.iterations", 100000)
	v.SetDefault("security.password.salt_length", 16)
	v.SetDefault("security.password.key_length", 32)

	// Session defaults
	v.SetDefault("security.session.default_ttl", "24h")
	v.SetDefault("security.session.persistent_ttl", "720h")
	v.SetDefault("security.session.onload_refresh_threshold", "2h")
	v.SetDefault("security.session.periodic_refresh_threshold", "5m")
	v.SetDefault("security.session.periodic_persistent_threshold", "24h")
	v.SetDefault("security.session.refresh_interval", "2m")
	v.SetDefault("security.session.secret_key", "eduquest-session-integrity-key")

	// Rate limit defaults
	v.SetDefault("security.rate_limit.max_attempts", 5)
	v.SetDefault("security.rate_limit.window", "15m")
	v.SetDefault("security.rate_limit.lockout_duration", "30m")
	v.SetDefault("security.rate_limit.sweep_interval", "1m")

	// Audit defaults
	v.SetDefault("audit.capacity", 1000)
	v.SetDefault("audit.persist_limit", 100)
	v.SetDefault("audit.retention", "24h")
	v.SetDefault("audit.cleanup_interval", "60s")
	v.SetDefault("audit.analysis_interval", "5m")
	v.SetDefault("audit.brute_force_threshold", 10)
	v.SetDefault("audit.brute_force_window", "15m")
	v.SetDefault("audit.dos_threshold", 50)
	v.SetDefault("audit.dos_window", "5m")

	// CSRF defaults
	v.SetDefault("csrf.auth_key", "")
	v.SetDefault("csrf.secure", false)
}
