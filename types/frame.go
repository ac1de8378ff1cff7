package types

// Frame is a raw CAN 2.0B frame as exchanged with a controller peripheral.
// The message-plane never inspects ID/Data itself; it only ever goes through
// the frame codec, which owns the NMEA 2000 bit layout.
type Frame struct {
	ID        uint32 // 29-bit extended CAN identifier
	Data      [8]byte
	Length    uint8
	Timestamp int64 // ms, from Codec.NowMs when a message is lowered for sending
}
