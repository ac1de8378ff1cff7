// Package arbiter provides mutual exclusion over the single SPI host shared
// by the two MCP2515 controllers (§4.4). Acquisition is bounded: a caller
// that cannot get the bus within its timeout gets ErrTimeout back and
// records a miss, rather than stalling forever.
package arbiter

import (
	"sync/atomic"
	"time"

	"tconnector-go/errcode"
)

// ErrTimeout is returned by WithBus when the bus could not be acquired
// within the given timeout. It is the contention-timeout error kind of
// the error taxonomy (§7).
const ErrTimeout = errcode.Timeout

// Arbiter is a single-slot mutex with bounded acquisition.
type Arbiter struct {
	slot   chan struct{}
	misses atomic.Uint32
}

// New returns a ready-to-use Arbiter for one shared SPI host.
func New() *Arbiter {
	a := &Arbiter{slot: make(chan struct{}, 1)}
	a.slot <- struct{}{}
	return a
}

// WithBus runs fn while holding the bus, acquiring it within timeout.
// fn must be a short, non-blocking critical section. The bus is released on
// every exit path of fn, including panics, so a trap in a caller above never
// leaves the bus stuck.
func (a *Arbiter) WithBus(timeout time.Duration, fn func() error) error {
	if !a.acquire(timeout) {
		a.misses.Add(1)
		return ErrTimeout
	}
	defer func() { a.slot <- struct{}{} }()
	return fn()
}

func (a *Arbiter) acquire(timeout time.Duration) bool {
	select {
	case <-a.slot:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-a.slot:
		return true
	case <-t.C:
		return false
	}
}

// Misses returns the number of acquisitions that timed out.
func (a *Arbiter) Misses() uint32 { return a.misses.Load() }
