package optimizer

import (
	"sync/atomic"
	"time"
)

// Clock supplies the instants the driver uses to time passes.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// StepClock is a logical clock that advances by a fixed step on every
// reading. Timings measured with it are deterministic, so listings that
// include pass annotations can be compared byte for byte.
//
// Safe for concurrent use.
type StepClock struct {
	step time.Duration
	seq  atomic.Int64
}

// NewStepClock creates a clock advancing by step per reading.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{step: step}
}

// Now implements Clock.
func (c *StepClock) Now() time.Time {
	n := c.seq.Add(1)
	return time.Unix(0, 0).Add(time.Duration(n) * c.step)
}

// Readings returns how many times Now has been called.
func (c *StepClock) Readings() int64 {
	return c.seq.Load()
}
