package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// politeLimiter paces page fetches. It speeds up by 20% per success (to 2x
// the configured rate) and halves on a 429 (to a quarter of it).
type politeLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// newPoliteLimiter returns a limiter at perSec requests per second with a
// burst of 1. perSec <= 0 disables pacing.
func newPoliteLimiter(perSec float64) *politeLimiter {
	r := rate.Limit(perSec)
	if perSec <= 0 {
		r = rate.Inf
	}
	return &politeLimiter{
		limiter:     rate.NewLimiter(r, 1),
		maxRate:     r * 2,
		minRate:     r / 4,
		currentRate: r,
	}
}

func (l *politeLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *politeLimiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentRate == rate.Inf {
		return
	}
	l.set(min(l.currentRate*1.2, l.maxRate))
}

func (l *politeLimiter) OnRateLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentRate == rate.Inf {
		return
	}
	l.set(max(l.currentRate*0.5, l.minRate))
	zap.L().Warn("ingest: slowing down after 429", zap.Float64("requests_per_sec", float64(l.currentRate)))
}

// set must be called with mu held.
func (l *politeLimiter) set(r rate.Limit) {
	l.currentRate = r
	l.limiter.SetLimit(r)
}

func (l *politeLimiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentRate
}
