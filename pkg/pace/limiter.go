package pace

import (
	"context"
	"time"

	"audiograb/pkg/cancel"

	"golang.org/x/time/rate"
)

// Limiter spaces out a class of requests
type Limiter interface {
	// Wait blocks until the next request may go out, the context ends, or c fires
	Wait(ctx context.Context, c cancel.Checker) error
	// Reset restores the full burst
	Reset()
}

// Pacer is a token bucket limiter whose waits stay responsive to cancellation
type Pacer struct {
	limiter *rate.Limiter
	perSec  float64
	burst   int
	poll    time.Duration
}

// NewPacer allows perSec events per second with the given burst. perSec <= 0 disables limiting.
func NewPacer(perSec float64, burst int, poll time.Duration) *Pacer {
	if burst < 1 {
		burst = 1
	}
	p := &Pacer{perSec: perSec, burst: burst, poll: poll}
	p.Reset()
	return p
}

// Unlimited returns a Pacer that never waits
func Unlimited() *Pacer {
	return NewPacer(0, 1, DefaultPoll)
}

// Wait reserves a token and sleeps until it is due
func (p *Pacer) Wait(ctx context.Context, c cancel.Checker) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := p.limiter.Reserve()
	if !r.OK() {
		return nil
	}
	if err := Sleep(r.Delay(), p.poll, c); err != nil {
		r.Cancel()
		return err
	}
	return ctx.Err()
}

// Allow reports whether a request may go out right now without waiting
func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}

func (p *Pacer) Reset() {
	limit := rate.Inf
	if p.perSec > 0 {
		limit = rate.Limit(p.perSec)
	}
	p.limiter = rate.NewLimiter(limit, p.burst)
}
