/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ratelimit provides the token bucket that paces calls to the
// definition store.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Acquirer hands out admission to one outbound operation.
type Acquirer interface {
	Acquire()
}

// Option customizes a TokenBucket.
type Option func(*TokenBucket)

// WithClock replaces the time source and the sleeper. Intended for tests.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(b *TokenBucket) {
		if now != nil {
			b.now = now
		}
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// WithObserver registers a callback invoked with every non-zero wait.
func WithObserver(fn func(time.Duration)) Option {
	return func(b *TokenBucket) {
		b.observe = fn
	}
}

// TokenBucket is a continuous-refill token bucket. It starts full.
//
// Acquire never fails: when the bucket is empty the caller sleeps for the time
// needed to accumulate the missing token. The refill-and-deduct sequence is
// serialized, so concurrent callers never spend the same token twice.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	now     func() time.Time
	sleep   func(time.Duration)
	observe func(time.Duration)
}

// NewTokenBucket creates a full bucket. Non-positive arguments fall back to 1.
func NewTokenBucket(capacity int, refillRate float64, opts ...Option) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	b := &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastRefill = b.now()
	return b
}

// Acquire takes one token, sleeping first if none is available.
//
// The lock is held across the sleep, so waiters are served one at a time.
func (b *TokenBucket) Acquire() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return
	}

	wait := time.Duration(math.Ceil((1 - b.tokens) / b.refillRate * float64(time.Second)))
	if b.observe != nil {
		b.observe(wait)
	}
	b.sleep(wait)

	b.refill()
	b.tokens--
}

// Tokens returns the current token level after refilling.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// Capacity returns the maximum burst size.
func (b *TokenBucket) Capacity() int {
	return int(b.capacity)
}

// refill must be called with mu held.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed < 0 {
		// clock stepped backwards; keep the old reference point
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}
