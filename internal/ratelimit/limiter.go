package ratelimit

import (
	"sync"
	"time"

	"github.com/eduquest/eduquest/internal/logger"
)

// Decision reasons
const (
	ReasonAccountLocked = "account_locked"
	ReasonRateLimited   = "rate_limited"
)

// Decision is the result of a rate-limit check.
type Decision struct {
	Allowed           bool          `json:"allowed"`
	Reason            string        `json:"reason,omitempty"`
	RemainingTime     time.Duration `json:"remainingTime,omitempty"`
	AttemptsRemaining int           `json:"attemptsRemaining"`
}

// Config holds the throttling parameters.
type Config struct {
	MaxAttempts     int
	Window          time.Duration
	LockoutDuration time.Duration
	SweepInterval   time.Duration
}

// DefaultConfig returns the standard throttling parameters: 5 attempts per
// 15-minute rolling window, 30-minute lockout.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		Window:          15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		SweepInterval:   time.Minute,
	}
}

type entry struct {
	attempts     []time.Time
	lockoutUntil time.Time
}

// Limiter throttles repeated failed authentication attempts per identifier.
// The window is evaluated at check time, not attempt time: once every attempt
// has aged out, the identifier reports a full allowance again.
//
// Entries are swept periodically so identifiers that fail once and never
// return do not accumulate without bound.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	log     *logger.Logger
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates a Limiter with the given configuration.
func New(cfg Config, log *logger.Logger) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		log:     log.WithComponent("rate_limiter"),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// SetClock overrides the limiter's time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check evaluates whether the identifier may attempt a login right now.
// Crossing the attempt threshold sets a fresh lockout as a side effect.
func (l *Limiter) Check(identifier string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entries[identifier]
	if e == nil {
		return Decision{Allowed: true, AttemptsRemaining: l.cfg.MaxAttempts}
	}

	// Active lockout wins over everything else.
	if !e.lockoutUntil.IsZero() {
		if now.Before(e.lockoutUntil) {
			return Decision{
				Allowed:       false,
				Reason:        ReasonAccountLocked,
				RemainingTime: e.lockoutUntil.Sub(now),
			}
		}
		// Lockout has expired; the identifier starts fresh.
		e.lockoutUntil = time.Time{}
		e.attempts = nil
	}

	e.attempts = pruneBefore(e.attempts, now.Add(-l.cfg.Window))

	if len(e.attempts) >= l.cfg.MaxAttempts {
		e.lockoutUntil = now.Add(l.cfg.LockoutDuration)
		l.log.Warn().
			Str("identifier", identifier).
			Int("attempts", len(e.attempts)).
			Time("lockout_until", e.lockoutUntil).
			Msg("identifier locked out")
		return Decision{
			Allowed:       false,
			Reason:        ReasonRateLimited,
			RemainingTime: l.cfg.LockoutDuration,
		}
	}

	return Decision{
		Allowed:           true,
		AttemptsRemaining: l.cfg.MaxAttempts - len(e.attempts),
	}
}

// RecordFailure appends a failed attempt for the identifier.
func (l *Limiter) RecordFailure(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[identifier]
	if e == nil {
		e = &entry{}
		l.entries[identifier] = e
	}
	e.attempts = append(e.attempts, l.now())
}

// Clear removes the attempt history and any active lockout for the
// identifier. Called once, on successful login.
func (l *Limiter) Clear(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}

// FailureCount returns the number of failed attempts for the identifier
// within the given trailing window. Read-only probe for callers that want a
// count without booking an attempt or taking a lockout decision.
func (l *Limiter) FailureCount(identifier string, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[identifier]
	if e == nil {
		return 0
	}
	return len(pruneBefore(e.attempts, l.now().Add(-window)))
}

// Start launches the periodic sweep of stale entries. It returns immediately.
func (l *Limiter) Start() {
	if l.cfg.SweepInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(l.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.done:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

// sweep drops identifiers whose attempts all aged out of the window and whose
// lockout has expired.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)
	for id, e := range l.entries {
		if !e.lockoutUntil.IsZero() && now.Before(e.lockoutUntil) {
			continue
		}
		if len(pruneBefore(e.attempts, cutoff)) == 0 {
			delete(l.entries, id)
		}
	}
}

// pruneBefore returns the attempts at or after the cutoff.
func pruneBefore(attempts []time.Time, cutoff time.Time) []time.Time {
	kept := attempts[:0:0]
	for _, t := range attempts {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
