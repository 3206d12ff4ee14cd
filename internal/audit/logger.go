package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/model"
	"github.com/eduquest/eduquest/internal/storage"
)

// typeIndexCap bounds the per-type index for security-relevant events.
const typeIndexCap = 100

// sensitiveKeyMarkers flags data fields that must never be stored verbatim.
var sensitiveKeyMarkers = []string{"password", "token", "secret", "key", "hash"}

// Summary is the derived overview served to the security dashboard.
type Summary struct {
	Total         int                   `json:"total"`
	ByType        map[string]int        `json:"byType"`
	RecentThreats []model.SecurityEvent `json:"recentThreats"`
	SystemHealth  string                `json:"systemHealth"`
}

// SessionIDProvider returns a best-effort identifier for the current session,
// typically a truncated token. May return empty.
type SessionIDProvider func() string

// SecurityLogger captures, retains and summarizes security events.
//
// The buffer is a bounded FIFO; events of security-relevant types additionally
// feed a per-type index used by the threat detectors. A persistence or
// analysis failure is never allowed to propagate to the caller: logging is
// best-effort infrastructure, not a correctness dependency.
type SecurityLogger struct {
	mu        sync.Mutex
	cfg       config.AuditConfig
	store     storage.Store
	log       *logger.Logger
	events    []model.SecurityEvent
	byType    map[string][]model.SecurityEvent
	sessionID SessionIDProvider
	flagged   map[string]time.Time // identifier -> last brute-force flag
	dosFlag   time.Time
	now       func() time.Time
	done      chan struct{}
	once      sync.Once
}

// NewSecurityLogger creates a SecurityLogger persisting to the given store.
func NewSecurityLogger(cfg config.AuditConfig, store storage.Store, log *logger.Logger) *SecurityLogger {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.PersistLimit <= 0 {
		cfg.PersistLimit = 100
	}
	return &SecurityLogger{
		cfg:     cfg,
		store:   store,
		log:     log.WithComponent("security_logger"),
		byType:  make(map[string][]model.SecurityEvent),
		flagged: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// SetClock overrides the logger's time source, for tests.
func (s *SecurityLogger) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetSessionIDProvider installs the best-effort session identifier source.
func (s *SecurityLogger) SetSessionIDProvider(fn SessionIDProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = fn
}

// Log records a security event and returns its ID. Sensitive fields in data
// are redacted before storage. Failures to persist are swallowed.
func (s *SecurityLogger) Log(eventType string, data map[string]any, level model.EventLevel) string {
	if level == "" {
		level = model.LevelInfo
	}

	s.mu.Lock()
	now := s.now()
	event := model.SecurityEvent{
		ID:        generateID("evt"),
		Timestamp: now,
		EventType: eventType,
		Level:     level,
		Data:      redact(data),
	}
	if s.sessionID != nil {
		event.SessionID = s.sessionID()
	}
	if ua, ok := event.Data["userAgent"].(string); ok {
		event.UserAgent = ua
		delete(event.Data, "userAgent")
	}

	s.events = append(s.events, event)
	if len(s.events) > s.cfg.Capacity {
		// FIFO eviction: drop the oldest overflow.
		s.events = append(s.events[:0:0], s.events[len(s.events)-s.cfg.Capacity:]...)
	}

	if model.SecurityEventTypes[eventType] {
		idx := append(s.byType[eventType], event)
		if len(idx) > typeIndexCap {
			idx = append(idx[:0:0], idx[len(idx)-typeIndexCap:]...)
		}
		s.byType[eventType] = idx
	}
	s.mu.Unlock()

	s.persist()
	return event.ID
}

// GetLogs returns the most recent events, optionally filtered by type.
// limit <= 0 means no limit.
func (s *SecurityLogger) GetLogs(eventType string, limit int) []model.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SecurityEvent
	for _, e := range s.events {
		if eventType == "" || e.EventType == eventType {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]model.SecurityEvent(nil), out...)
}

// GetSummary derives the dashboard overview: totals, per-type counts, the
// most recent threat-like entries and a coarse health classification.
func (s *SecurityLogger) GetSummary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		ByType:       make(map[string]int),
		SystemHealth: "good",
	}
	summary.Total = len(s.events)

	var threats []model.SecurityEvent
	for _, e := range s.events {
		summary.ByType[e.EventType]++
		if model.IsThreat(e.EventType) {
			threats = append(threats, e)
		}
	}
	if len(threats) > 10 {
		threats = threats[len(threats)-10:]
	}
	summary.RecentThreats = append([]model.SecurityEvent(nil), threats...)

	if len(threats) > 5 {
		summary.SystemHealth = "warning"
	}
	for _, t := range threats {
		if t.Level == model.LevelError {
			summary.SystemHealth = "critical"
			break
		}
	}

	return summary
}

// Start launches the periodic cleanup and threat analysis loops.
func (s *SecurityLogger) Start() {
	if s.cfg.CleanupInterval > 0 {
		go s.loop(s.cfg.CleanupInterval, s.cleanup)
	}
	if s.cfg.AnalysisInterval > 0 {
		go s.loop(s.cfg.AnalysisInterval, s.analyzePatterns)
	}
}

// Close stops the background loops and flushes the persisted tail.
func (s *SecurityLogger) Close() {
	s.once.Do(func() { close(s.done) })
	s.persist()
}

func (s *SecurityLogger) loop(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-s.done:
			return
		}
	}
}

// cleanup prunes events past the retention window and enforces capacity.
func (s *SecurityLogger) cleanup() {
	s.mu.Lock()
	cutoff := s.now().Add(-s.cfg.Retention)
	kept := s.events[:0:0]
	for _, e := range s.events {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	s.events = kept
	for t, idx := range s.byType {
		keptIdx := idx[:0:0]
		for _, e := range idx {
			if !e.Timestamp.Before(cutoff) {
				keptIdx = append(keptIdx, e)
			}
		}
		s.byType[t] = keptIdx
	}
	s.mu.Unlock()

	s.persist()
}

// persist writes the most recent events to the store. Write failures (quota,
// backend outage) are reported to the process log and otherwise ignored.
func (s *SecurityLogger) persist() {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	tail := s.events
	if len(tail) > s.cfg.PersistLimit {
		tail = tail[len(tail)-s.cfg.PersistLimit:]
	}
	tail = append([]model.SecurityEvent(nil), tail...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := storage.SetJSON(ctx, s.store, storage.KeySecurityLogs, tail); err != nil {
		s.log.Error().Err(err).Msg("failed to persist security logs")
	}
}

// redact returns a copy of data with sensitive fields truncated or replaced.
func redact(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if isSensitiveKey(k) {
			out[k] = redactValue(v)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func redactValue(v any) string {
	str, ok := v.(string)
	if !ok || len(str) <= 8 {
		return "[REDACTED]"
	}
	return str[:8] + "..."
}

func generateID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + id[:26]
}
