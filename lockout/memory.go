package lockout

import (
	"context"
	"sync"
	"time"
)

type attemptWindow struct {
	count       int64
	windowEnds  time.Time
	lockedUntil time.Time
}

// MemoryTracker keeps counters in process, used when redis is
// disabled and in tests, counters are per instance only
type MemoryTracker struct {
	mu          sync.Mutex
	attempts    map[string]*attemptWindow
	maxAttempts int
	window      time.Duration
}

func NewMemoryTracker(maxAttempts int, window time.Duration) *MemoryTracker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryTracker{
		attempts:    make(map[string]*attemptWindow),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (t *MemoryTracker) RecordFailure(_ context.Context, identifier string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	w, ok := t.attempts[identifier]
	if !ok || now.After(w.windowEnds) {
		w = &attemptWindow{windowEnds: now.Add(t.window)}
		t.attempts[identifier] = w
	}
	w.count++
	if w.count >= int64(t.maxAttempts) {
		w.lockedUntil = now.Add(t.window)
	}
	return w.count
}

func (t *MemoryTracker) IsLocked(_ context.Context, identifier string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.attempts[identifier]
	if !ok {
		return false
	}
	return time.Now().UTC().Before(w.lockedUntil)
}

func (t *MemoryTracker) Clear(_ context.Context, identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, identifier)
}

func (t *MemoryTracker) MaxAttempts() int {
	return t.maxAttempts
}

func (t *MemoryTracker) LockoutDuration() time.Duration {
	return t.window
}
