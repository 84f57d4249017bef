package ratelimit

import (
	"context"
	"time"
)

// Pacer holds a paginated walk for a fixed delay between one page response
// and the next page request.
type Pacer struct {
	Delay time.Duration
}

// NewPacer returns a pacer for delay. A non-positive delay disables pausing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{Delay: delay}
}

// Pause blocks for the full delay, or until ctx is done.
func (p *Pacer) Pause(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil || p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
