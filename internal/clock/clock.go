// Package clock abstracts the time source used to stamp deployment results.
package clock

import "time"

// Clock provides the current time. Deployment results carry start/end
// timestamps and per-operation durations taken from it.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FakeClock is a deterministic Clock for tests. Every call to Now returns the
// current value and then moves it forward by the configured step, so code
// measuring a duration between two Now calls observes exactly one step.
type FakeClock struct {
	current time.Time
	step    time.Duration
}

// NewFakeClock creates a FakeClock starting at t that advances by step on every read.
// A zero step yields a frozen clock.
func NewFakeClock(t time.Time, step time.Duration) *FakeClock {
	return &FakeClock{current: t, step: step}
}

// Now returns the current fake time and advances it by one step.
func (c *FakeClock) Now() time.Time {
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Advance moves the fake time forward by d without consuming a step.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
