// Package ratelimit throttles requests to a single source.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum delay between consecutive Wait calls.
// Each source owns its own Limiter; a shared Limiter serializes its callers.
type Limiter struct {
	minDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

// New returns a Limiter that spaces calls at least minDelay apart.
func New(minDelay time.Duration) *Limiter {
	if minDelay < 0 {
		minDelay = 0
	}
	return &Limiter{minDelay: minDelay}
}

// Wait blocks until minDelay has elapsed since the previous Wait returned.
// The first call never blocks. A cancelled ctx returns ctx.Err() and leaves
// the previous timestamp untouched.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastAction.IsZero() {
		if wait := l.minDelay - time.Since(l.lastAction); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	l.lastAction = time.Now()
	return nil
}

// MinDelay reports the configured spacing.
func (l *Limiter) MinDelay() time.Duration {
	return l.minDelay
}
