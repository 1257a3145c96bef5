package clock

import "time"

// FakeClock is a manually driven Clock for tests. It only moves when the
// test advances or pins it, and normalizes every instant to UTC to match
// the system clock.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

// Now returns the frozen instant.
func (c *FakeClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Set pins the clock to t, which may be in the past.
func (c *FakeClock) Set(t time.Time) { c.now = t.UTC() }
