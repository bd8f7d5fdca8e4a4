package pace

import (
	"math/rand"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/errors"
)

// DefaultPoll is how often a pacing sleep re-checks the cancel flag
const DefaultPoll = 100 * time.Millisecond

// Range is a randomized delay bounded by [Min, Max]
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Fixed returns a Range that always yields d
func Fixed(d time.Duration) Range {
	return Range{Min: d, Max: d}
}

// Seconds builds a Range from fractional seconds
func Seconds(min, max float64) Range {
	return Range{
		Min: time.Duration(min * float64(time.Second)),
		Max: time.Duration(max * float64(time.Second)),
	}
}

// IsZero reports whether the range never delays
func (r Range) IsZero() bool {
	return r.Max <= 0
}

// Pick returns a uniformly distributed delay inside the range
func (r Range) Pick() time.Duration {
	if r.Max <= r.Min {
		if r.Min < 0 {
			return 0
		}
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min)+1))
}

// Sleep waits for d in poll-sized ticks, checking c before every tick.
// It returns a cancelled error as soon as the flag is observed.
func Sleep(d, poll time.Duration, c cancel.Checker) error {
	c = cancel.OrNever(c)
	if poll <= 0 {
		poll = DefaultPoll
	}

	deadline := time.Now().Add(d)
	for {
		if c.Cancelled() {
			return errors.Cancelled()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if remaining > poll {
			remaining = poll
		}
		time.Sleep(remaining)
	}
}

// Pause sleeps for a random delay picked from r
func Pause(r Range, poll time.Duration, c cancel.Checker) error {
	return Sleep(r.Pick(), poll, c)
}
