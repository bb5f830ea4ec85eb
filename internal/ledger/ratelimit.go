// ratelimit.go - Token bucket for RPC calls.
//
// Public RPC endpoints throttle clients that scan many block windows in a
// row. Eth takes one token per request and waits for a refill when the
// bucket is empty.

package ledger

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled with refillRate tokens every
// refillPeriod, up to maxTokens.
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
}

func NewRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

// PerSecond allows n requests per second with bursts of n.
func PerSecond(n int) *RateLimiter {
	return NewRateLimiter(n, n, time.Second)
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(time.Now())
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}
		rl.mu.Lock()
		next := rl.lastRefill.Add(rl.refillPeriod)
		rl.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens returns the number of available tokens.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(time.Now())
	return rl.tokens
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = rl.maxTokens
	rl.lastRefill = time.Now()
}

func (rl *RateLimiter) refill(now time.Time) {
	n := int(now.Sub(rl.lastRefill) / rl.refillPeriod)
	if n <= 0 {
		return
	}
	rl.tokens += n * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = rl.lastRefill.Add(time.Duration(n) * rl.refillPeriod)
}
