// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time for the limiter so tests can drive token refill
// deterministically instead of sleeping.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules [f] to run once [d] has elapsed. Callbacks may fire
	// spuriously early relative to a concurrently advanced fake clock; the
	// limiter re-checks bucket state on every wake.
	AfterFunc(d time.Duration, f func())
}

// WallClock is the production Clock backed by the runtime timer wheel.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

func (WallClock) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// FakeClock is a manually advanced Clock for tests. Advance moves the current
// time and fires every callback whose deadline has passed, in deadline order,
// on the calling goroutine.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []fakeTimer
}

type fakeTimer struct {
	at time.Time
	f  func()
}

// NewFakeClock returns a FakeClock starting at [start].
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, fakeTimer{at: c.now.Add(d), f: f})
}

// Advance moves the clock forward by [d] and runs due callbacks.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []fakeTimer
	var rest []fakeTimer
	for _, t := range c.pending {
		if !t.at.After(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.pending = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}
