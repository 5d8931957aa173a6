// Package pacer inserts a fixed pause between sequential units of work.
package pacer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer waits a fixed delay after a unit of work finishes. The pause is
// measured from the call to Wait, so a slow unit never shortens it.
type Pacer struct {
	delay time.Duration
}

// New creates a Pacer. A non-positive delay disables pausing.
func New(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Delay returns the configured pause
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Wait blocks for the full delay or until ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	// Drain the initial token so the next one is a full delay away
	limiter := rate.NewLimiter(rate.Every(p.delay), 1)
	limiter.Allow()

	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// the deadline falls before the pause would end
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}
