package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether an authenticated request should be allowed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter is a fixed-window rate limiter that tracks request counts
// per subject in memory. The limit for a subject is the most generous limit
// among its roles; roles without an entry use the default. Counters whose
// window has ended are swept at most once per window, so memory is bounded by
// the subjects seen in the last two windows.
type InProcessLimiter struct {
	roleRPM    map[string]int
	defaultRPM int
	window     time.Duration
	now        func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastSweep time.Time
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-role requests-per-minute.
// A limit of zero or less means unlimited.
func NewInProcessLimiter(roleRPM map[string]int, defaultRPM int) *InProcessLimiter {
	normalized := make(map[string]int, len(roleRPM))
	for role, rpm := range roleRPM {
		normalized[normalizeRole(role)] = rpm
	}
	return &InProcessLimiter{
		roleRPM:    normalized,
		defaultRPM: defaultRPM,
		window:     time.Minute,
		now:        time.Now,
		counters:   make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	rpm := l.limitFor(identity)
	if rpm <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.counters[identity.Subject]
	if !ok || now.Sub(c.windowAt) >= l.window {
		l.counters[identity.Subject] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops expired counters. Must be called with mu held.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for subject, c := range l.counters {
		if now.Sub(c.windowAt) >= l.window {
			delete(l.counters, subject)
		}
	}
	l.lastSweep = now
}

func (l *InProcessLimiter) limitFor(identity *Identity) int {
	limit, matched := 0, false
	for _, role := range identity.Roles {
		rpm, ok := l.roleRPM[role]
		if !ok {
			continue
		}
		if rpm <= 0 {
			return 0 // an unlimited role wins
		}
		if !matched || rpm > limit {
			limit, matched = rpm, true
		}
	}
	if !matched {
		return l.defaultRPM
	}
	return limit
}
