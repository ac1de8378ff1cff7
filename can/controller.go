// Package can provides the uniform controller abstraction (§4.1) over the
// two incompatible CAN backends this node carries: the on-chip TWAI
// peripheral and the two SPI-attached MCP2515 devices. Backends diverge only
// in how rx frames arrive (peripheral interrupt vs. SPI poll); from a
// worker's perspective rx is always "drain frames until none remain and let
// the codec deliver assembled NMEA messages to the handler". The low-level
// peripheral drivers themselves (register-level TWAI / MCP2515 access) are
// treated as external collaborators and are only referenced here through the
// Peripheral interface injected at construction.
package can

import (
	"tconnector-go/arbiter"
	"tconnector-go/codec"
	"tconnector-go/types"
)

// Backend tags which physical transport a Controller wraps.
type Backend uint8

const (
	Twai Backend = iota
	Mcp
)

func (b Backend) String() string {
	if b == Mcp {
		return "mcp2515"
	}
	return "twai"
}

// SendResult is the outcome of SendFrame.
type SendResult uint8

const (
	SendOk SendResult = iota
	SendBusy
	SendErr
)

// PollResult is the outcome of PollReceived.
type PollResult uint8

const (
	Empty PollResult = iota
	Got
)

// Status mirrors the peripheral counters a worker or the observability
// reporter wants to snapshot.
type Status struct {
	MsgsToTx   int
	MsgsToRx   int
	RxOverruns int
	RxMissed   int
}

// Config carries the options §4.1 recognizes for both backend variants.
// MsgHandler is invoked synchronously from PollReceived on the caller's
// goroutine; it must be non-blocking and must not re-enter the controller.
type Config struct {
	MsgBufSize     int
	RxFrameBufSize int
	ForwardEnabled bool
	MsgHandler     func(types.NMEAMessage)
}

// Peripheral is the external, low-level driver boundary: "open, send_frame,
// poll_for_frame, alerts" per the spec. Both backends are handed one of
// these at construction; this package never speaks to hardware registers
// directly.
type Peripheral interface {
	Open(msgBufSize, rxFrameBufSize int) error
	SendFrame(f types.Frame) error
	PollFrame() (types.Frame, bool)
	Alerts() uint32
	Status() Status
}

// Controller is the uniform capability set of §4.1.
type Controller interface {
	ID() types.ControllerID
	Backend() Backend
	// Arbiter returns the shared SPI arbiter for Mcp controllers, nil for
	// Twai. Callers (the rx/tx workers) acquire it around PollReceived /
	// SendFrame calls when non-nil.
	Arbiter() *arbiter.Arbiter

	Open(cfg Config) error
	SendFrame(msg types.NMEAMessage) (SendResult, error)
	PollReceived() PollResult
	Alerts() uint32
	Status() Status
}

// base holds the fields and codec plumbing common to both variants.
type base struct {
	id      types.ControllerID
	periph  Peripheral
	codec   codec.Codec
	handler func(types.NMEAMessage)
	dest    byte // 0xff broadcast, per §6.5
}

func (b *base) open(cfg Config) error {
	b.handler = cfg.MsgHandler
	b.dest = 0xff
	return b.periph.Open(cfg.MsgBufSize, cfg.RxFrameBufSize)
}

// sendFrame lowers msg to one or more frames and writes them out, stopping
// at the first failure (NMEA tx is best-effort at this layer, §4.6).
func (b *base) sendFrame(msg types.NMEAMessage) (SendResult, error) {
	msg.ClampLength()
	frames := b.codec.Lower(msg)
	now := b.codec.NowMs()
	for i := range frames {
		frames[i].Timestamp = now
		if err := b.periph.SendFrame(frames[i]); err != nil {
			return SendErr, err
		}
	}
	return SendOk, nil
}

// pollReceived drains frames from the peripheral, assembles them via the
// codec, and delivers whatever the codec completes to the installed
// handler. The self-echo and length-clamp filtering named in §4.5 is the
// rx worker's responsibility, not the controller's: this method is a pure
// assemble-and-deliver loop.
func (b *base) pollReceived() PollResult {
	got := Empty
	for {
		f, ok := b.periph.PollFrame()
		if !ok {
			return got
		}
		if msg, complete := b.codec.Assemble(f); complete {
			got = Got
			if b.handler != nil {
				b.handler(msg)
			}
		}
	}
}

func (b *base) alerts() uint32 { return b.periph.Alerts() }
func (b *base) status() Status { return b.periph.Status() }
