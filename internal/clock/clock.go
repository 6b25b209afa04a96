// Package clock abstracts time so that issuance timestamps and fixture
// delays can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and a way to wait
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is a Clock backed by the time package
type SystemClock struct{}

// NewSystemClock returns the real wall clock
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now implements Clock
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock
func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FixtureClock is a manually advanced clock for tests.
// Sleep advances the clock instead of blocking.
type FixtureClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixtureClock creates a fixture clock starting at the given time
func NewFixtureClock(start time.Time) *FixtureClock {
	return &FixtureClock{now: start}
}

// Now implements Clock
func (c *FixtureClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock by advancing the fixture time
func (c *FixtureClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d
func (c *FixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *FixtureClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
