// Package ratelimit implements a per-service minimum-delay throttle. Every
// outbound marketplace call names the service it talks to; Wait blocks until
// at least the configured delay has elapsed since the previous call to that
// service returned.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// serviceLimit tracks the throttle state for one service name. The mutex is
// held across the sleep so concurrent waiters on the same service serialize
// and each observes the previous waiter's completion time.
type serviceLimit struct {
	mu       sync.Mutex
	minDelay time.Duration
	lastCall time.Time
}

// Limiter throttles calls per service name. Services must be registered
// before they are waited on; waiting on an unknown name is a configuration
// error, not a silent no-op.
type Limiter struct {
	mu       sync.RWMutex
	services map[string]*serviceLimit
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{
		services: make(map[string]*serviceLimit),
	}
}

// Register sets or updates the minimum delay for a service name.
func (l *Limiter) Register(service string, minDelay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sl, ok := l.services[service]; ok {
		sl.mu.Lock()
		sl.minDelay = minDelay
		sl.mu.Unlock()
		return
	}
	l.services[service] = &serviceLimit{minDelay: minDelay}
}

// Wait blocks until at least the service's minimum delay has elapsed since
// the previous Wait for the same service returned, then records the new
// last-call timestamp. It returns early with the context's error when the
// context is cancelled; in that case the timestamp is not updated.
func (l *Limiter) Wait(ctx context.Context, service string) error {
	l.mu.RLock()
	sl, ok := l.services[service]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ratelimit: %q: %w", service, domain.ErrNoLimit)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if wait := sl.minDelay - time.Since(sl.lastCall); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("ratelimit: wait %s: %w", service, ctx.Err())
		case <-timer.C:
		}
	}

	sl.lastCall = time.Now()
	return nil
}
