package can

import (
	"tconnector-go/arbiter"
	"tconnector-go/codec"
	"tconnector-go/types"
)

// TwaiController wraps the on-chip TWAI peripheral. Its rx frames arrive via
// the peripheral's own interrupt-driven FIFO; PollReceived explicitly drains
// that FIFO rather than blocking on an interrupt itself.
type TwaiController struct {
	base
}

// NewTwai builds a TWAI-backed controller. periph is the injected low-level
// driver (interrupt-driven rx FIFO, explicit drain on PollReceived).
func NewTwai(id types.ControllerID, periph Peripheral, cod codec.Codec) *TwaiController {
	return &TwaiController{base: base{id: id, periph: periph, codec: cod}}
}

func (c *TwaiController) ID() types.ControllerID   { return c.id }
func (c *TwaiController) Backend() Backend         { return Twai }
func (c *TwaiController) Arbiter() *arbiter.Arbiter { return nil }

func (c *TwaiController) Open(cfg Config) error { return c.open(cfg) }
func (c *TwaiController) SendFrame(msg types.NMEAMessage) (SendResult, error) {
	return c.sendFrame(msg)
}
func (c *TwaiController) PollReceived() PollResult { return c.pollReceived() }
func (c *TwaiController) Alerts() uint32           { return c.alerts() }
func (c *TwaiController) Status() Status           { return c.status() }
