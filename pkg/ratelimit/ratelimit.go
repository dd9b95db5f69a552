// Package ratelimit paces outbound requests to the agent backend. A token
// bucket smooths submission bursts, and a cooldown window honors server
// Retry-After responses. The limiter never retries anything; it only delays
// the next request.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket with an optional server-imposed cooldown.
// The zero value is not usable; construct with NewLimiter.
// Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	rate        float64 // tokens added per second
	burst       float64 // bucket capacity
	tokens      float64
	last        time.Time // last refill
	pausedUntil time.Time // nonzero while honoring a cooldown
	off         bool
}

// NewLimiter returns a limiter allowing rate requests per second with the
// given burst capacity. A rate of zero or less disables pacing entirely.
func NewLimiter(rate float64, burst int) *Limiter {
	if rate <= 0 {
		return &Limiter{off: true}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait blocks until a token is available and any cooldown has elapsed, or
// until ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.off {
		return nil
	}

	for {
		ok, delay := l.reserve()
		if ok {
			return nil
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow reports whether a request may proceed right now, consuming a token
// when it may.
func (l *Limiter) Allow() bool {
	if l.off {
		return true
	}
	ok, _ := l.reserve()
	return ok
}

// Pause holds back all requests for at least d. The client calls this when
// the backend answers 429 with a Retry-After header. Overlapping pauses keep
// the latest deadline.
func (l *Limiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)

	l.mu.Lock()
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
	l.mu.Unlock()
}

// CooldownRemaining reports how much of a Pause window is left, zero when
// none is active.
func (l *Limiter) CooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rem := time.Until(l.pausedUntil); rem > 0 {
		return rem
	}
	return 0
}

// reserve refills the bucket and tries to take one token. When it cannot, it
// returns how long the caller should sleep before trying again.
func (l *Limiter) reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Before(l.pausedUntil) {
		return false, l.pausedUntil.Sub(now)
	}

	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}

	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return false, wait
}
