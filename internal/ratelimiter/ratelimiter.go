// Package ratelimiter throttles backend calls with a token bucket.
//
// A binding configured with a rate limit wraps its backend with
// backend.Throttle, which waits on a RateLimiter before every call. Remote
// stores (S3, MinIO, databases) can then be shielded from bursts produced
// by hosts that issue many small stream operations.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the conventions used by
// backend throttling: a zero rate means unlimited and a zero burst falls back
// to one second's worth of requests.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained calls with
// bursts of up to burst calls.
//
// Special cases:
//   - requestsPerSecond = 0: no limiting at all
//   - burst = 0: burst equals requestsPerSecond
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter never blocks.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Burst returns the bucket capacity.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}
