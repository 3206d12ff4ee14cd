package ratelimit

import (
	"testing"
	"time"

	"github.com/eduquest/eduquest/internal/logger"
)

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	l := New(DefaultConfig(), logger.Nop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	return l, &now
}

func TestCheck_FreshIdentifier(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)

	d := l.Check("alice")
	if !d.Allowed {
		t.Fatal("expected fresh identifier to be allowed")
	}
	if d.AttemptsRemaining != 5 {
		t.Fatalf("expected 5 attempts remaining, got %d", d.AttemptsRemaining)
	}
}

func TestCheck_LockoutAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)

	for i := 0; i < 5; i++ {
		if d := l.Check("alice"); !d.Allowed {
			t.Fatalf("attempt %d unexpectedly blocked: %+v", i, d)
		}
		l.RecordFailure("alice")
	}

	d := l.Check("alice")
	if d.Allowed {
		t.Fatal("expected 6th check to be blocked")
	}
	if d.Reason != ReasonRateLimited {
		t.Fatalf("expected reason %q, got %q", ReasonRateLimited, d.Reason)
	}
	if d.RemainingTime != 30*time.Minute {
		t.Fatalf("expected 30m lockout, got %v", d.RemainingTime)
	}

	// Once locked, subsequent checks report the lockout.
	d = l.Check("alice")
	if d.Allowed || d.Reason != ReasonAccountLocked {
		t.Fatalf("expected account_locked, got %+v", d)
	}
}

func TestCheck_LockoutCountsDown(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)

	for i := 0; i < 5; i++ {
		l.RecordFailure("bob")
	}
	l.Check("bob") // trips the lockout

	*now = now.Add(10 * time.Minute)
	d := l.Check("bob")
	if d.Allowed {
		t.Fatal("expected lockout to still be active")
	}
	if d.RemainingTime != 20*time.Minute {
		t.Fatalf("expected 20m remaining, got %v", d.RemainingTime)
	}
}

func TestCheck_LockoutExpiryStartsFresh(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)

	for i := 0; i < 5; i++ {
		l.RecordFailure("carol")
	}
	l.Check("carol")

	*now = now.Add(31 * time.Minute)
	d := l.Check("carol")
	if !d.Allowed {
		t.Fatalf("expected expired lockout to clear, got %+v", d)
	}
	if d.AttemptsRemaining != 5 {
		t.Fatalf("expected a full allowance after lockout expiry, got %d", d.AttemptsRemaining)
	}
}

func TestCheck_WindowEvaluatedAtCheckTime(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)

	for i := 0; i < 4; i++ {
		l.RecordFailure("dave")
	}

	// All four attempts age out of the window before the next check.
	*now = now.Add(16 * time.Minute)
	d := l.Check("dave")
	if !d.Allowed || d.AttemptsRemaining != 5 {
		t.Fatalf("expected aged-out attempts to be forgotten, got %+v", d)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t)

	for i := 0; i < 5; i++ {
		l.RecordFailure("erin")
	}
	l.Check("erin")
	l.Clear("erin")

	d := l.Check("erin")
	if !d.Allowed || d.AttemptsRemaining != 5 {
		t.Fatalf("expected cleared identifier to start fresh, got %+v", d)
	}
}

func TestFailureCount(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)

	l.RecordFailure("frank")
	*now = now.Add(10 * time.Minute)
	l.RecordFailure("frank")

	if got := l.FailureCount("frank", 15*time.Minute); got != 2 {
		t.Fatalf("expected 2 failures in window, got %d", got)
	}
	if got := l.FailureCount("frank", 5*time.Minute); got != 1 {
		t.Fatalf("expected 1 failure in the short window, got %d", got)
	}
	if got := l.FailureCount("nobody", time.Hour); got != 0 {
		t.Fatalf("expected 0 failures for unknown identifier, got %d", got)
	}
}

func TestSweep_EvictsStaleEntries(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter(t)

	l.RecordFailure("gone")
	for i := 0; i < 5; i++ {
		l.RecordFailure("locked")
	}
	l.Check("locked")

	*now = now.Add(16 * time.Minute)
	l.sweep()

	l.mu.Lock()
	_, goneExists := l.entries["gone"]
	_, lockedExists := l.entries["locked"]
	l.mu.Unlock()

	if goneExists {
		t.Fatal("expected aged-out entry to be swept")
	}
	if !lockedExists {
		t.Fatal("expected actively locked entry to survive the sweep")
	}
}
