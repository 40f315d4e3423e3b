// Package ratelimit provides token-bucket stores for per-caller rate limiting.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy defines limits.
type Policy struct {
	RPM   int // sustained requests per minute
	Burst int // bucket capacity
}

// ratePerSecond converts RPM to tokens per second.
func (p Policy) ratePerSecond() float64 {
	r := float64(p.RPM) / 60.0
	if r <= 0 {
		return 1 // Safe fallback
	}
	return r
}

// RetryAfter is how long an empty bucket takes to earn one token, rounded up
// to whole seconds.
func (p Policy) RetryAfter() time.Duration {
	return time.Duration(math.Ceil(1/p.ratePerSecond())) * time.Second
}

func (p Policy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

// Store abstracts the storage for rate limiting buckets.
type Store interface {
	// Allow reports whether key may perform an action costing cost tokens.
	Allow(ctx context.Context, key string, policy Policy, cost int) (bool, error)
}

// DefaultSweepInterval is how often MemoryStore drops idle buckets.
const DefaultSweepInterval = time.Minute

// MemoryStore keeps one limiter per key in process memory. Suitable for tests
// and single-instance deployments. Buckets that have refilled completely are
// dropped on a periodic sweep, since a full bucket behaves like a new one.
type MemoryStore struct {
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		limiters:      make(map[string]*rate.Limiter),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
	}
}

// Allow takes cost tokens from key's bucket. A bucket created under a
// different policy is retuned to the one passed in.
func (s *MemoryStore) Allow(_ context.Context, key string, policy Policy, cost int) (bool, error) {
	now := s.now()
	limit, burst := rate.Limit(policy.ratePerSecond()), policy.burst()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)
	l, exists := s.limiters[key]
	if !exists {
		l = rate.NewLimiter(limit, burst)
		s.limiters[key] = l
	}
	if l.Limit() != limit {
		l.SetLimitAt(now, limit)
	}
	if l.Burst() != burst {
		l.SetBurstAt(now, burst)
	}
	return l.AllowN(now, cost), nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if s.lastSweep.IsZero() {
		s.lastSweep = now
		return
	}
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.lastSweep = now
	for key, l := range s.limiters {
		if l.TokensAt(now) >= float64(l.Burst()) {
			delete(s.limiters, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
