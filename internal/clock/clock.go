package clock

import (
	"sync"
	"time"
)

// Clock is the station master clock. Implementations must be safe for
// concurrent use and must never run backwards as observed by callers.
type Clock interface {
	Now() time.Time
}

// System is the production clock. It reports wall-clock time in UTC and
// clamps against the last value handed out so callers never observe time
// moving backwards across an NTP step.
type System struct {
	mu   sync.Mutex
	last time.Time
}

// NewSystem constructs the production clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current instant in UTC, monotonically non-decreasing.
func (c *System) Now() time.Time {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.last) {
		return c.last
	}
	c.last = now
	return now
}

// Fake is a manually driven clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake constructs a fake clock pinned at start (normalized to UTC).
func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC()}
}

// Now returns the fake's current instant.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward. Negative durations are ignored so
// the non-decreasing contract holds for fakes too.
func (c *Fake) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the fake clock to t when t is not earlier than the current
// fake instant; earlier values are ignored.
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t = t.UTC()
	if t.Before(c.now) {
		return
	}
	c.now = t
}
