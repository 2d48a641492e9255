// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ratelimit bounds the rate of outbound calls to upstream data
// providers. Each logical provider gets one token bucket; callers suspend
// until a token is available. Priority callers move to the front of the wait
// queue but never bypass the rate ceiling itself.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/cnft"
)

// Budget configures one provider's token bucket.
type Budget struct {
	// Capacity is the burst size: the most requests that can be dispatched
	// back to back before callers start waiting on refill.
	Capacity int
	// RefillPerSecond is the steady-state request rate.
	RefillPerSecond float64
	// QueueBound caps the number of suspended callers. Once full, Schedule
	// rejects immediately with cnft.ErrRateLimited instead of growing the
	// queue without bound.
	QueueBound int
}

// DefaultBudget is a conservative budget for providers with no explicit
// configuration.
var DefaultBudget = Budget{
	Capacity:        4,
	RefillPerSecond: 2,
	QueueBound:      64,
}

// Limiter holds one bucket per provider name. It is the only piece of shared
// mutable state crossing intents; construct exactly one per process and
// inject it, so tests can instantiate isolated limiters.
type Limiter struct {
	clock    Clock
	defaults Budget

	mu      sync.Mutex
	buckets map[string]*bucket
	budgets map[string]Budget
}

// New returns a Limiter using [defaults] for any provider not present in
// [budgets]. A nil clock uses the wall clock.
func New(clock Clock, defaults Budget, budgets map[string]Budget) *Limiter {
	if clock == nil {
		clock = WallClock{}
	}
	if defaults.Capacity < 1 {
		defaults.Capacity = DefaultBudget.Capacity
	}
	if defaults.RefillPerSecond <= 0 {
		defaults.RefillPerSecond = DefaultBudget.RefillPerSecond
	}
	if defaults.QueueBound < 1 {
		defaults.QueueBound = DefaultBudget.QueueBound
	}
	l := &Limiter{
		clock:    clock,
		defaults: defaults,
		buckets:  make(map[string]*bucket),
		budgets:  make(map[string]Budget, len(budgets)),
	}
	for name, b := range budgets {
		l.budgets[name] = b
	}
	return l
}

// Schedule blocks until [provider]'s bucket grants a token, then runs [fn]
// and returns its result. It never retries. Priority requests are dequeued
// ahead of normal ones but still consume tokens. If the wait queue is full
// the call fails fast with cnft.ErrRateLimited; if [ctx] is done before a
// token arrives the wait is abandoned.
func (l *Limiter) Schedule(ctx context.Context, provider string, priority bool, fn func() error) error {
	if err := l.bucket(provider).acquire(ctx, priority); err != nil {
		return err
	}
	return fn()
}

func (l *Limiter) bucket(provider string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[provider]; ok {
		return b
	}
	cfg, ok := l.budgets[provider]
	if !ok {
		cfg = l.defaults
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = l.defaults.Capacity
	}
	if cfg.RefillPerSecond <= 0 {
		cfg.RefillPerSecond = l.defaults.RefillPerSecond
	}
	if cfg.QueueBound < 1 {
		cfg.QueueBound = l.defaults.QueueBound
	}
	b := &bucket{
		name:       provider,
		cfg:        cfg,
		clock:      l.clock,
		tokens:     float64(cfg.Capacity),
		lastRefill: l.clock.Now(),
	}
	l.buckets[provider] = b
	return b
}

type waiter struct {
	grant   chan struct{}
	granted bool
}

type bucket struct {
	name  string
	cfg   Budget
	clock Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	priority   []*waiter
	normal     []*waiter
	timerArmed bool
}

func (b *bucket) acquire(ctx context.Context, priority bool) error {
	b.mu.Lock()
	b.refillLocked()
	if len(b.priority)+len(b.normal) == 0 && b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}
	if len(b.priority)+len(b.normal) >= b.cfg.QueueBound {
		b.mu.Unlock()
		return fmt.Errorf("%w: provider %s queue full (%d waiting)", cnft.ErrRateLimited, b.name, b.cfg.QueueBound)
	}
	w := &waiter{grant: make(chan struct{})}
	if priority {
		b.priority = append(b.priority, w)
	} else {
		b.normal = append(b.normal, w)
	}
	b.armLocked()
	b.mu.Unlock()

	select {
	case <-w.grant:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		if w.granted {
			// Lost the race: a token was already spent on us. Return it and
			// wake the next waiter instead.
			b.tokens++
			b.dispatchLocked()
		} else {
			b.removeLocked(w)
		}
		b.mu.Unlock()
		return ctx.Err()
	}
}

// refillLocked credits tokens for the time elapsed since the last refill,
// clamped at capacity.
func (b *bucket) refillLocked() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * b.cfg.RefillPerSecond
	if max := float64(b.cfg.Capacity); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now
}

// dispatchLocked hands out whole tokens to waiters, priority queue first.
func (b *bucket) dispatchLocked() {
	for b.tokens >= 1 {
		w := b.popLocked()
		if w == nil {
			break
		}
		b.tokens--
		w.granted = true
		close(w.grant)
	}
	if len(b.priority)+len(b.normal) > 0 {
		b.armLocked()
	}
}

func (b *bucket) popLocked() *waiter {
	if len(b.priority) > 0 {
		w := b.priority[0]
		b.priority = b.priority[1:]
		return w
	}
	if len(b.normal) > 0 {
		w := b.normal[0]
		b.normal = b.normal[1:]
		return w
	}
	return nil
}

func (b *bucket) removeLocked(target *waiter) {
	filter := func(ws []*waiter) []*waiter {
		for i, w := range ws {
			if w == target {
				return append(ws[:i], ws[i+1:]...)
			}
		}
		return ws
	}
	b.priority = filter(b.priority)
	b.normal = filter(b.normal)
}

// armLocked schedules a wake for when the next whole token will be
// available. At most one timer is armed per bucket.
func (b *bucket) armLocked() {
	if b.timerArmed {
		return
	}
	deficit := 1 - b.tokens
	if deficit < 0 {
		deficit = 0
	}
	wait := time.Duration(deficit / b.cfg.RefillPerSecond * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	b.timerArmed = true
	b.clock.AfterFunc(wait, b.fire)
}

func (b *bucket) fire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timerArmed = false
	b.refillLocked()
	b.dispatchLocked()
}
