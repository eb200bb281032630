// Package throttle paces requests per endpoint by handing out reservations
// against a "next allowed time" cursor.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between requests to each endpoint.
// One Limiter serves any number of endpoints; each has an independent
// cursor, and all cursors are advanced under a single lock so concurrent
// reservations for an endpoint are strictly spaced.
type Limiter struct {
	mu   sync.Mutex
	next map[string]time.Time
	now  func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		next: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve claims the next slot for endpointID at the given rate (requests
// per second) and returns how long the caller must wait before using it.
// A non-positive rate is unthrottled and always returns zero.
func (l *Limiter) Reserve(endpointID string, rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	interval := time.Duration(float64(time.Second) / rate)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now
	if next, ok := l.next[endpointID]; ok && next.After(now) {
		start = next
	}
	l.next[endpointID] = start.Add(interval)
	return start.Sub(now)
}

// Wait reserves a slot and sleeps until it is due. Only the calling
// goroutine sleeps. If ctx ends first the reservation is still consumed
// and ctx's error is returned.
func (l *Limiter) Wait(ctx context.Context, endpointID string, rate float64) (time.Duration, error) {
	d := l.Reserve(endpointID, rate)
	if d <= 0 {
		return 0, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return d, nil
	case <-ctx.Done():
		return d, ctx.Err()
	}
}

// Reset forgets the cursor for endpointID.
func (l *Limiter) Reset(endpointID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.next, endpointID)
}
