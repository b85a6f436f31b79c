// Package ratelimit provides the optional whole-session request ceiling.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/sitecrawl/internal/metrics"
)

// Config holds the ceiling settings. RPS <= 0 disables the ceiling.
type Config struct {
	RPS   float64
	Burst int
}

// Limiter caps the combined request rate of every worker in a session. It
// complements the per-worker politeness delay and is off unless configured.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter. A zero Config yields an unlimited Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Enabled reports whether the limiter ever blocks.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter.Limit() != rate.Inf
}

// Wait blocks until the ceiling admits another request. The URL is accepted
// for the crawler.Limiter contract; the ceiling is shared by all URLs.
func (l *Limiter) Wait(ctx context.Context, _ string) error {
	if !l.Enabled() {
		return nil
	}
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}
