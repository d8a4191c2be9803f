package crawl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the minimum spacing between consecutive fetches to the
// source, shared by all crawl workers so the pool as a whole stays under
// the bot-defense radar.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer with the given minimum delay; zero or negative
// disables pacing.
func NewPacer(minDelay time.Duration) *Pacer {
	if minDelay <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// Wait blocks until the next fetch slot, respecting the context.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	return nil
}
