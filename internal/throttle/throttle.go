// Package throttle coalesces bursts of triggers into at most one run per
// interval, with a single trailing run for triggers inside the window.
package throttle

import (
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing between two runs.
const DefaultInterval = 500 * time.Millisecond

type Timer interface {
	Stop() bool
}

// Clock is the time source; tests replace it with virtual time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Throttle struct {
	interval time.Duration
	clock    Clock
	run      func()

	mu      sync.Mutex
	lastRun time.Time
	ran     bool
	pending Timer
	stopped bool
}

func New(interval time.Duration, clock Clock, run func()) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Throttle{interval: interval, clock: clock, run: run}
}

// Trigger runs immediately when the interval since the last run has elapsed;
// otherwise it makes sure exactly one trailing run is scheduled at the
// window boundary.
func (t *Throttle) Trigger() {
	t.mu.Lock()
	if t.stopped || t.pending != nil {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	if !t.ran || now.Sub(t.lastRun) >= t.interval {
		t.lastRun = now
		t.ran = true
		t.mu.Unlock()
		t.run()
		return
	}
	wait := t.lastRun.Add(t.interval).Sub(now)
	t.pending = t.clock.AfterFunc(wait, t.fire)
	t.mu.Unlock()
}

func (t *Throttle) fire() {
	t.mu.Lock()
	if t.stopped || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.lastRun = t.clock.Now()
	t.mu.Unlock()
	t.run()
}

// Pending reports whether a trailing run is scheduled.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Stop cancels a scheduled run; later triggers are ignored.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
