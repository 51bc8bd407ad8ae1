package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a strict minimum delay between consecutive upstream calls.
// One gate guards one upstream credential; every caller must go through the
// same instance. The gate is an explicit dependency threaded into the sync
// run, never hidden global state, so tests can substitute their own.
type Gate struct {
	lim *rate.Limiter
}

// NewGate builds a gate with the given minimum inter-call interval.
func NewGate(minInterval time.Duration) *Gate {
	return &Gate{lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.lim.Wait(ctx)
}
