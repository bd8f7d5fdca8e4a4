// Package cancel provides the cooperative stop signal polled by every long-running step.
package cancel

import "sync/atomic"

// Checker reports whether the user asked to stop. Implementations must be cheap and safe for concurrent use.
type Checker interface {
	Cancelled() bool
}

// Func adapts a plain predicate to a Checker
type Func func() bool

func (f Func) Cancelled() bool {
	if f == nil {
		return false
	}
	return f()
}

// Never is a Checker that never fires
var Never Checker = Func(nil)

// Flag is a settable Checker. The zero value is ready to use.
type Flag struct {
	set atomic.Bool
}

// Cancel raises the flag
func (f *Flag) Cancel() {
	f.set.Store(true)
}

// Reset lowers the flag so it can be reused for another run
func (f *Flag) Reset() {
	f.set.Store(false)
}

func (f *Flag) Cancelled() bool {
	return f.set.Load()
}

// OrNever returns c, or Never when c is nil
func OrNever(c Checker) Checker {
	if c == nil {
		return Never
	}
	return c
}

// After returns a Checker that starts reporting true on its n-th poll (1-based)
func After(n int) Checker {
	var polls atomic.Int64
	return Func(func() bool {
		return polls.Add(1) >= int64(n)
	})
}
