package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter enforces a per-user rate limit on generation endpoints.
// Limiters are created lazily and evicted after an idle period so the
// map doesn't grow with every user id ever seen.
type userLimiter struct {
	mu      sync.Mutex
	users   map[string]*userEntry
	limit   rate.Limit
	burst   int
	maxIdle time.Duration
}

type userEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newUserLimiter(limit rate.Limit, burst int) *userLimiter {
	return &userLimiter{
		users:   make(map[string]*userEntry),
		limit:   limit,
		burst:   burst,
		maxIdle: 10 * time.Minute,
	}
}

// Allow reports whether the user may make a request now.
func (l *userLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.users[userID]
	if !ok {
		l.evictStale(now)
		entry = &userEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// evictStale drops entries idle past maxIdle. Called with the lock
// held, only on the miss path so the hot path stays cheap.
func (l *userLimiter) evictStale(now time.Time) {
	for id, entry := range l.users {
		if now.Sub(entry.lastSeen) > l.maxIdle {
			delete(l.users, id)
		}
	}
}
