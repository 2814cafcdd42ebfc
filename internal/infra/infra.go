// Package infra provides shared infrastructure components used across
// the application: rate limiting and HTTP utilities.
package infra

import (
	"context"

	"golang.org/x/time/rate"
)

// --- Rate limiter ---

// Limiter blocks until the caller may issue another request.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter is a token bucket allowing rps requests per second with the
// given burst.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter creates a limiter allowing rps requests per second. A
// non-positive rps disables limiting; burst is raised to at least 1.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{lim: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.lim.Wait(ctx)
}

// Unlimited reports whether the limiter never blocks.
func (rl *RateLimiter) Unlimited() bool {
	return rl.lim.Limit() == rate.Inf
}
