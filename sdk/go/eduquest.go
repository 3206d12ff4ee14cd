package eduquest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config holds the configuration for the EduQuest client.
type Config struct {
	// BaseURL is the root URL of the EduQuest security server.
	// Examples: "https://play.example.com" or "https://play.example.com/api/v1"
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// CacheTTL controls how long validated tokens are cached in memory
	// to reduce calls to the server. Set to 0 to disable caching.
	// Default: 2 minutes
	CacheTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 10s timeout is used.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 2 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client is the EduQuest SDK client. It wraps the auth and security
// monitoring APIs and provides net/http middleware for protecting routes.
type Client struct {
	cfg   Config
	cache *tokenCache
}

// NewClient creates a new EduQuest client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:   cfg,
		cache: newTokenCache(),
	}
}

// Register creates a new account. A successful registration returns an
// established session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	body, err := c.post(ctx, "/auth/register", req, "")
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("eduquest: failed to parse register response: %w", err)
	}
	return &resp, nil
}

// Login authenticates a user with username and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	body, err := c.post(ctx, "/auth/login", req, "")
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("eduquest: failed to parse login response: %w", err)
	}
	return &resp, nil
}

// Logout revokes the current session. The token is removed from the local
// cache regardless of the server's answer.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, "/auth/logout", nil, token)
	c.cache.delete(token)
	return err
}

// ValidateToken validates a session token by calling the server. Results are
// cached according to CacheTTL to reduce network calls.
func (c *Client) ValidateToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	// Check cache first
	if c.cfg.CacheTTL > 0 {
		if user, ok := c.cache.get(token); ok {
			return user, nil
		}
	}

	body, err := c.get(ctx, "/users/me", token)
	if err != nil {
		if apiErr, ok := IsAPIError(err); ok && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("eduquest: failed to parse user: %w", err)
	}

	// Cache the result
	if c.cfg.CacheTTL > 0 {
		c.cache.set(token, &user, c.cfg.CacheTTL)
	}

	return &user, nil
}

// InvalidateToken removes a token from the local cache. Call this after
// logout to ensure stale tokens are not served from cache.
func (c *Client) InvalidateToken(token string) {
	c.cache.delete(token)
}

// SecurityLogs fetches recent security events, optionally filtered by type.
func (c *Client) SecurityLogs(ctx context.Context, token, eventType string, limit int) (*SecurityLogs, error) {
	q := url.Values{}
	if eventType != "" {
		q.Set("type", eventType)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}

	path := "/security/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	body, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}

	var logs SecurityLogs
	if err := json.Unmarshal(body, &logs); err != nil {
		return nil, fmt.Errorf("eduquest: failed to parse security logs: %w", err)
	}
	return &logs, nil
}

// SecuritySummary fetches the aggregate security posture.
func (c *Client) SecuritySummary(ctx context.Context, token string) (*SecuritySummary, error) {
	body, err := c.get(ctx, "/security/summary", token)
	if err != nil {
		return nil, err
	}

	var summary SecuritySummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("eduquest: failed to parse security summary: %w", err)
	}
	return &summary, nil
}

// SessionStats fetches the monitoring projection of the active session.
func (c *Client) SessionStats(ctx context.Context, token string) (*SessionStats, error) {
	body, err := c.get(ctx, "/security/sessions", token)
	if err != nil {
		return nil, err
	}

	var stats SessionStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("eduquest: failed to parse session stats: %w", err)
	}
	return &stats, nil
}

// post sends a POST request to the EduQuest API.
func (c *Client) post(ctx context.Context, path string, payload interface{}, token string) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("eduquest: failed to marshal request: %w", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("eduquest: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req)
}

// get sends a GET request to the EduQuest API.
func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("eduquest: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eduquest: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("eduquest: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	return body, nil
}

// tokenCache provides in-memory caching for validated tokens.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	user      *User
	expiresAt time.Time
}

func newTokenCache() *tokenCache {
	tc := &tokenCache{
		entries: make(map[string]*cacheEntry),
	}
	go tc.cleanup()
	return tc
}

func (tc *tokenCache) get(token string) (*User, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	entry, ok := tc.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.user, true
}

func (tc *tokenCache) set(token string, user *User, ttl time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries[token] = &cacheEntry{
		user:      user,
		expiresAt: time.Now().Add(ttl),
	}
}

func (tc *tokenCache) delete(token string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.entries, token)
}

func (tc *tokenCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		tc.mu.Lock()
		now := time.Now()
		for k, v := range tc.entries {
			if now.After(v.expiresAt) {
				delete(tc.entries, k)
			}
		}
		tc.mu.Unlock()
	}
}
