package can

import (
	"tconnector-go/arbiter"
	"tconnector-go/codec"
	"tconnector-go/types"
)

// MCPController wraps one of the two SPI-attached MCP2515 devices. Rx frames
// never arrive asynchronously here: PollReceived always issues SPI reads
// under the arbiter, driven by the caller's poll loop.
//
// The arbiter itself is NOT acquired inside this type. Per §4.5/§4.6 the
// rx/tx workers acquire it around their calls into PollReceived/SendFrame,
// so that a stuck arbiter shows up as a worker-level miss counter rather
// than a controller-level one.
type MCPController struct {
	base
	bus *arbiter.Arbiter
}

// NewMCP builds an MCP2515-backed controller sharing bus with its sibling
// MCP2515 controller.
func NewMCP(id types.ControllerID, periph Peripheral, cod codec.Codec, bus *arbiter.Arbiter) *MCPController {
	return &MCPController{base: base{id: id, periph: periph, codec: cod}, bus: bus}
}

func (c *MCPController) ID() types.ControllerID    { return c.id }
func (c *MCPController) Backend() Backend          { return Mcp }
func (c *MCPController) Arbiter() *arbiter.Arbiter { return c.bus }

func (c *MCPController) Open(cfg Config) error { return c.open(cfg) }
func (c *MCPController) SendFrame(msg types.NMEAMessage) (SendResult, error) {
	return c.sendFrame(msg)
}
func (c *MCPController) PollReceived() PollResult { return c.pollReceived() }
func (c *MCPController) Alerts() uint32           { return c.alerts() }
func (c *MCPController) Status() Status           { return c.status() }
