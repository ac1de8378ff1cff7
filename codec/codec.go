// Package codec owns the NMEA 2000 wire layout: how a 29-bit extended CAN
// identifier plus up to 8 data bytes map onto a types.NMEAMessage. A real
// deployment would pull this from a maintained NMEA 2000 PGN library (the
// kind github.com/aldas/go-nmea-client wraps); Fast-Packet and ISO
// Transport-Protocol reassembly for multi-frame PGNs are explicitly
// delegated upstream of this repository, so Codec only ever assembles
// single-frame messages.
package codec

import (
	"tconnector-go/types"
)

// Codec translates between raw CAN frames and assembled NMEA messages.
type Codec interface {
	// Assemble folds one frame into a message. ok is true when f alone
	// completed a message (always true for single-frame PGNs; a multi-frame
	// codec would return false until the final frame arrives).
	Assemble(f types.Frame) (msg types.NMEAMessage, ok bool)

	// Lower renders msg as the frame(s) needed to put it on the wire.
	Lower(msg types.NMEAMessage) []types.Frame

	// NowMs is the codec's time source for frame timestamps, isolated
	// behind the interface so tests can supply a deterministic clock.
	NowMs() int64
}

// SingleFrame implements Codec for PGNs that always fit in one CAN frame.
// It carries no reassembly state; ControllerID is stamped onto every
// message it assembles since the wire format itself has no room for it.
type SingleFrame struct {
	ControllerID types.ControllerID
	Clock        func() int64
}

// New builds a SingleFrame codec for the given controller, using clock as
// its time source.
func New(id types.ControllerID, clock func() int64) *SingleFrame {
	return &SingleFrame{ControllerID: id, Clock: clock}
}

func (c *SingleFrame) NowMs() int64 {
	if c.Clock == nil {
		return 0
	}
	return c.Clock()
}

// Assemble decodes the standard NMEA 2000 extended-ID layout:
//
//	bit 28..26  priority (3 bits)
//	bit 25..8   PGN      (18 bits)
//	bit 7..0    source   (8 bits)
func (c *SingleFrame) Assemble(f types.Frame) (types.NMEAMessage, bool) {
	var msg types.NMEAMessage
	msg.ControllerID = c.ControllerID
	msg.Priority = uint8((f.ID >> 26) & 0x7)
	msg.PGN = (f.ID >> 8) & 0x3FFFF
	msg.Source = uint8(f.ID & 0xFF)
	msg.Length = int(f.Length)
	msg.ClampLength()
	copy(msg.Data[:msg.Length], f.Data[:f.Length])
	return msg, true
}

// Lower is the inverse of Assemble. msg.Length beyond 8 bytes is truncated
// to a single frame; multi-frame lowering belongs to a Fast-Packet-aware
// codec this repository does not implement.
func (c *SingleFrame) Lower(msg types.NMEAMessage) []types.Frame {
	msg.ClampLength()
	var f types.Frame
	f.ID = (uint32(msg.Priority)&0x7)<<26 | (msg.PGN&0x3FFFF)<<8 | uint32(msg.Source)
	n := msg.Length
	if n > 8 {
		n = 8
	}
	f.Length = uint8(n)
	copy(f.Data[:n], msg.Data[:n])
	return []types.Frame{f}
}
