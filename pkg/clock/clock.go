// Package clock provides the microsecond time source used to timestamp
// traced I/O operations.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time in microseconds.
// Successive calls never return a smaller value.
type Clock interface {
	NowMicros() uint64
}

// systemClock anchors to the wall clock once and advances with Go's
// monotonic clock, so wall-clock steps never make time go backwards.
type systemClock struct {
	base time.Time
}

var (
	defaultSystem     *systemClock
	defaultSystemOnce sync.Once
)

// System returns the process-wide wall-anchored monotonic clock.
func System() Clock {
	defaultSystemOnce.Do(func() {
		defaultSystem = &systemClock{base: time.Now()}
	})
	return defaultSystem
}

func (c *systemClock) NowMicros() uint64 {
	return uint64(c.base.UnixMicro()) + uint64(time.Since(c.base).Microseconds())
}

// Fake is a deterministic clock for tests. Each NowMicros call returns the
// current value and then advances it by Step.
type Fake struct {
	mu   sync.Mutex
	now  uint64
	Step uint64
}

// NewFake creates a fake clock starting at start that advances by step on
// every read.
func NewFake(start, step uint64) *Fake {
	return &Fake{now: start, Step: step}
}

func (f *Fake) NowMicros() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.now
	f.now += f.Step
	return t
}

// Advance moves the clock forward by d microseconds without a read.
func (f *Fake) Advance(d uint64) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// Peek returns the value the next NowMicros call will return.
func (f *Fake) Peek() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}
