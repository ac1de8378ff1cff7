// Package mode implements the mode supervisor (§4.8): two GPIO input pins,
// any-edge interrupt, feeding a small bounded channel drained by a dedicated
// worker that re-samples both pins and publishes the resulting two-bit mode
// atomically for the guest host to read.
package mode

import (
	"context"
	"sync/atomic"

	"tconnector-go/gpio"
	"tconnector-go/types"
)

// pinEdge is the event an ISR hands off to the worker: just "something
// changed on this pin", never a computed mode value (§4.8 rationale).
type pinEdge struct{}

// Supervisor owns the two mode pins and the process-wide mode cell.
type Supervisor struct {
	msb gpio.IRQPin
	lsb gpio.IRQPin

	isrQ chan pinEdge

	cell  atomic.Uint32 // holds types.Mode
	drops atomic.Uint32
}

// New configures msb and lsb as any-edge inputs with no internal pull and
// starts them publishing into the supervisor's bounded ISR channel.
func New(msb, lsb gpio.IRQPin) (*Supervisor, error) {
	s := &Supervisor{isrQ: make(chan pinEdge, 8)}

	if err := msb.ConfigureInput(gpio.PullNone); err != nil {
		return nil, err
	}
	if err := lsb.ConfigureInput(gpio.PullNone); err != nil {
		return nil, err
	}
	s.msb, s.lsb = msb, lsb

	s.cell.Store(uint32(s.sample()))

	isr := func() {
		select {
		case s.isrQ <- pinEdge{}:
		default:
			s.drops.Add(1) // protect the ISR path, never block it
		}
	}
	if err := msb.SetIRQ(gpio.EdgeBoth, isr); err != nil {
		return nil, err
	}
	if err := lsb.SetIRQ(gpio.EdgeBoth, isr); err != nil {
		return nil, err
	}
	return s, nil
}

// sample does the race-free re-read of both lines (§4.8 rationale: the ISR
// only tells us some edge fired, the worker determines the actual value).
func (s *Supervisor) sample() types.Mode {
	return types.ModeFromPins(s.msb.Get(), s.lsb.Get())
}

// Run drains the ISR channel until ctx is cancelled, recomputing and
// publishing the mode on every edge.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.isrQ:
			s.cell.Store(uint32(s.sample()))
		}
	}
}

// Mode reads the current published mode. Safe to call from any goroutine.
func (s *Supervisor) Mode() types.Mode { return types.Mode(s.cell.Load()) }

// Drops returns the number of ISR events dropped because the bounded
// channel was full.
func (s *Supervisor) Drops() uint32 { return s.drops.Load() }
