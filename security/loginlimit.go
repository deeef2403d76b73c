// Package security holds deployment-tunable protection policies that sit
// outside the core protocol flow.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter is a per-identity token bucket limiting login attempts.
// It satisfies auth.AttemptPolicy. Entries idle longer than the stale
// window are dropped by a background sweep to bound memory.
type LoginLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*limiterEntry
	rate       rate.Limit
	burst      int
	staleAfter time.Duration
	stop       chan struct{}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLoginLimiter allows attemptsPerMinute sustained attempts per identity
// with the given burst.
func NewLoginLimiter(attemptsPerMinute, burst int) *LoginLimiter {
	l := &LoginLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       rate.Limit(float64(attemptsPerMinute) / 60.0),
		burst:      burst,
		staleAfter: 15 * time.Minute,
		stop:       make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether another attempt is permitted for the identity.
func (l *LoginLimiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[identity] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

// Close stops the background sweep.
func (l *LoginLimiter) Close() {
	close(l.stop)
}

func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *LoginLimiter) sweep() {
	cutoff := time.Now().Add(-l.staleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for identity, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, identity)
		}
	}
}
