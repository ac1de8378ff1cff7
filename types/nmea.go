// Package types holds the data model shared across every message-plane
// component: the NMEA message that flows rx -> guest -> tx, and the operating
// mode driven by the GPIO side channel.
package types

import "tconnector-go/x/mathx"

// MaxDataLen is the largest NMEA 2000 payload this node carries after
// Fast-Packet/TP reassembly.
const MaxDataLen = 223

// ControllerID indexes the three CAN controllers this node owns.
type ControllerID uint8

const (
	Controller0 ControllerID = 0 // TWAI (on-chip)
	Controller1 ControllerID = 1 // MCP2515 #1 (SPI)
	Controller2 ControllerID = 2 // MCP2515 #2 (SPI)
)

// NumControllers is the fixed controller count; queues and worker tables are
// sized from it at boot.
const NumControllers = 3

func (c ControllerID) Valid() bool { return c < NumControllers }

func (c ControllerID) String() string {
	switch c {
	case Controller0:
		return "ctrl0"
	case Controller1:
		return "ctrl1"
	case Controller2:
		return "ctrl2"
	default:
		return "ctrl?"
	}
}

// NMEAMessage is the one universal currency on the internal side of the
// node. It is fixed-size and trivially copyable: queues move it by value, so
// there are no lifetime or aliasing concerns across workers.
type NMEAMessage struct {
	ControllerID ControllerID
	Priority     uint8 // 3-bit
	PGN          uint32 // 18-bit Parameter Group Number
	Source       uint8  // NMEA 2000 source address
	Length       int
	Data         [MaxDataLen]byte
}

// ClampLength clamps Length to [0, MaxDataLen], matching the codec's
// lowering contract and the guest import's validation.
func (m *NMEAMessage) ClampLength() {
	m.Length = mathx.Clamp(m.Length, 0, MaxDataLen)
}
