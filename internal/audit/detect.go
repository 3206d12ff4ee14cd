package audit

import (
	"time"

	"github.com/eduquest/eduquest/internal/model"
)

// Pattern-scan heuristics. Thresholds for the scans that have no dedicated
// configuration knob.
const (
	loginFrequencyThreshold = 20               // logins per identifier per scan window
	shortSessionThreshold   = 5                // sessions shorter than shortSessionCutoff
	shortSessionCutoff      = 30 * time.Second // what counts as an abnormally short session
	requestRateThreshold    = 500              // events per scan window
)

// analyzePatterns runs the timer-driven threat detectors. Each detector emits
// its own log entry instead of blocking whichever call tripped it.
func (s *SecurityLogger) analyzePatterns() {
	s.detectBruteForce()
	s.detectDoS()
	s.scanLoginFrequency()
	s.scanShortSessions()
	s.scanRequestRate()
}

// detectBruteForce flags identifiers with an excessive number of failed
// logins inside the detection window.
func (s *SecurityLogger) detectBruteForce() {
	s.mu.Lock()
	now := s.now()
	cutoff := now.Add(-s.cfg.BruteForceWindow)

	counts := make(map[string]int)
	for _, e := range s.byType[model.EventLoginFailed] {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if id, ok := e.Data["identifier"].(string); ok && id != "" {
			counts[id]++
		}
	}

	var hits []string
	for id, n := range counts {
		if n < s.cfg.BruteForceThreshold {
			continue
		}
		// One flag per identifier per window; repeated failures inside the
		// same window do not re-emit.
		if last, ok := s.flagged[id]; ok && now.Sub(last) < s.cfg.BruteForceWindow {
			continue
		}
		s.flagged[id] = now
		hits = append(hits, id)
	}
	s.mu.Unlock()

	for _, id := range hits {
		s.Log(model.EventSuspiciousActivity, map[string]any{
			"pattern":    "brute_force",
			"identifier": id,
		}, model.LevelError)
	}
}

// detectDoS flags a burst of rate-limit events across all identifiers.
func (s *SecurityLogger) detectDoS() {
	s.mu.Lock()
	now := s.now()
	cutoff := now.Add(-s.cfg.DoSWindow)

	count := 0
	for _, e := range s.byType[model.EventRateLimited] {
		if !e.Timestamp.Before(cutoff) {
			count++
		}
	}

	hit := count >= s.cfg.DoSThreshold && now.Sub(s.dosFlag) >= s.cfg.DoSWindow
	if hit {
		s.dosFlag = now
	}
	s.mu.Unlock()

	if hit {
		s.Log(model.EventSuspiciousActivity, map[string]any{
			"pattern": "dos",
			"count":   count,
		}, model.LevelError)
	}
}

// scanLoginFrequency flags identifiers logging in unusually often.
func (s *SecurityLogger) scanLoginFrequency() {
	s.mu.Lock()
	cutoff := s.now().Add(-s.cfg.AnalysisInterval)

	counts := make(map[string]int)
	for _, e := range s.events {
		if e.EventType != model.EventLoginSuccess || e.Timestamp.Before(cutoff) {
			continue
		}
		if id, ok := e.Data["identifier"].(string); ok && id != "" {
			counts[id]++
		}
	}

	var hits []string
	for id, n := range counts {
		if n >= loginFrequencyThreshold {
			hits = append(hits, id)
		}
	}
	s.mu.Unlock()

	for _, id := range hits {
		s.Log(model.EventSuspiciousActivity, map[string]any{
			"pattern":    "unusual_login_frequency",
			"identifier": id,
		}, model.LevelWarn)
	}
}

// scanShortSessions flags a run of abnormally short sessions.
func (s *SecurityLogger) scanShortSessions() {
	s.mu.Lock()
	cutoff := s.now().Add(-s.cfg.AnalysisInterval)

	count := 0
	for _, e := range s.events {
		if e.EventType != model.EventLogout || e.Timestamp.Before(cutoff) {
			continue
		}
		if ms, ok := toInt64(e.Data["durationMs"]); ok && ms >= 0 && time.Duration(ms)*time.Millisecond < shortSessionCutoff {
			count++
		}
	}
	hit := count >= shortSessionThreshold
	s.mu.Unlock()

	if hit {
		s.Log(model.EventSuspiciousActivity, map[string]any{
			"pattern": "short_sessions",
			"count":   count,
		}, model.LevelWarn)
	}
}

// scanRequestRate flags an abnormally high overall event rate.
func (s *SecurityLogger) scanRequestRate() {
	s.mu.Lock()
	cutoff := s.now().Add(-s.cfg.AnalysisInterval)

	count := 0
	for _, e := range s.events {
		if !e.Timestamp.Before(cutoff) {
			count++
		}
	}
	hit := count >= requestRateThreshold
	s.mu.Unlock()

	if hit {
		s.Log(model.EventSuspiciousActivity, map[string]any{
			"pattern": "high_request_rate",
			"count":   count,
		}, model.LevelWarn)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
