package security

import (
	"sync"
	"time"
)

// RateLimiter implements the token bucket algorithm, one bucket per identifier.
// Identifiers are usually "<company>:<actor>" so one tenant cannot starve another.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	capacity int
	refill   time.Duration // time to regain one token
	idleTTL  time.Duration // buckets untouched this long are dropped by Sweep

	now func() time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per identifier per minute, with bursts up
// to perMinute. A non-positive perMinute disables limiting.
//
// Example:
//
//	limiter := NewRateLimiter(6)
//	if !limiter.Allow(companyID + ":" + actorID) { ... 429 ... }
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: perMinute,
		idleTTL:  time.Hour,
		now:      time.Now,
	}
	if perMinute > 0 {
		rl.refill = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Allow consumes one token for identifier and reports whether the request may proceed.
func (rl *RateLimiter) Allow(identifier string) bool {
	_, ok := rl.Reserve(identifier)
	return ok
}

// Reserve is Allow that also returns how long the caller should wait before retrying
// when the request is refused.
func (rl *RateLimiter) Reserve(identifier string) (time.Duration, bool) {
	if rl.capacity <= 0 {
		return 0, true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[identifier]
	if !ok {
		b = &bucket{tokens: float64(rl.capacity), lastSeen: now}
		rl.buckets[identifier] = b
	}

	elapsed := now.Sub(b.lastSeen)
	if elapsed > 0 {
		b.tokens += float64(elapsed) / float64(rl.refill)
		if b.tokens > float64(rl.capacity) {
			b.tokens = float64(rl.capacity)
		}
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	wait := time.Duration((1 - b.tokens) * float64(rl.refill))
	return wait, false
}

// Reset forgets the bucket of identifier.
func (rl *RateLimiter) Reset(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, identifier)
}

// Sweep drops buckets idle for longer than the idle TTL and returns how many it removed.
// The server calls it from its maintenance ticker.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleTTL {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
