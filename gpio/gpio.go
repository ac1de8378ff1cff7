// Package gpio defines the pin abstractions used by the mode supervisor and
// the SPI chip-select/interrupt lines of the two MCP2515 controllers. It is
// the boundary between the message plane and whatever board-support package
// actually drives the pins (tinygo/machine on-device, a fake in tests).
package gpio

// Pull selects the pin's internal pull resistor, if any.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which transition(s) trigger an interrupt.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// Pin is a digital input/output line.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// IRQPin extends Pin with edge-triggered interrupts. handler runs on the
// interrupt context: it must be fast and non-blocking.
type IRQPin interface {
	Pin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}
