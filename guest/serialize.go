package guest

import (
	"tconnector-go/types"
	"tconnector-go/x/fmtx"
)

const hexDigits = "0123456789ABCDEF"

// MsgBufSize is the guest ingress buffer size from §6.1: 10 fixed nibbles
// plus up to 223 bytes of data at 2 nibbles each.
const MsgBufSize = 10 + 2*types.MaxDataLen

// sourceNibbleMask is the "lossy" truncation §9 calls a known quirk: the
// 8-bit source address is packed into a single hex nibble on the wire the
// guest sees. Source code does this verbatim; do not silently widen it.
const sourceNibbleMask = 0xF

// writeHexNibbles writes n as exactly width uppercase hex digits,
// zero-padded, truncating any high bits that don't fit — the same
// fixed-width zero-pad idiom as conv.U32Hex, generalized to arbitrary width.
func writeHexNibbles(dst []byte, n uint32, width int) {
	for i := width - 1; i >= 0; i-- {
		dst[i] = hexDigits[n&0xF]
		n >>= 4
	}
}

// EncodeMsgBuf renders msg into the guest's msg_buf per §6.1's exact
// big-endian hex-ASCII layout: controller_id(1) priority(1) pgn(5)
// source(1, low-nibble-only) length(2) data(2*length).
func EncodeMsgBuf(msg types.NMEAMessage) []byte {
	msg.ClampLength()
	buf := make([]byte, 10+2*msg.Length)

	writeHexNibbles(buf[0:1], uint32(msg.ControllerID), 1)
	writeHexNibbles(buf[1:2], uint32(msg.Priority), 1)
	writeHexNibbles(buf[2:7], msg.PGN&0x3FFFF, 5)
	writeHexNibbles(buf[7:8], uint32(msg.Source)&sourceNibbleMask, 1)
	writeHexNibbles(buf[8:10], uint32(msg.Length), 2)
	for i := 0; i < msg.Length; i++ {
		writeHexNibbles(buf[10+2*i:12+2*i], uint32(msg.Data[i]), 2)
	}
	return buf
}

// DecodeMsgBuf is the inverse of EncodeMsgBuf, used by the round-trip test
// (§8 property 2) and by anything that needs to read back what the guest
// host wrote. It does not, and cannot, recover the high nibble of source —
// that information is lost at encode time, not here.
func DecodeMsgBuf(buf []byte) (types.NMEAMessage, error) {
	if len(buf) < 10 {
		return types.NMEAMessage{}, fmtx.Errorf("guest: msg_buf too short: %d bytes", len(buf))
	}
	var msg types.NMEAMessage

	cid, err := parseHexNibbles(buf[0:1])
	if err != nil {
		return msg, fmtx.Errorf("guest: controller_id: %w", err)
	}
	msg.ControllerID = types.ControllerID(cid)

	pri, err := parseHexNibbles(buf[1:2])
	if err != nil {
		return msg, fmtx.Errorf("guest: priority: %w", err)
	}
	msg.Priority = uint8(pri)

	pgn, err := parseHexNibbles(buf[2:7])
	if err != nil {
		return msg, fmtx.Errorf("guest: pgn: %w", err)
	}
	msg.PGN = pgn

	src, err := parseHexNibbles(buf[7:8])
	if err != nil {
		return msg, fmtx.Errorf("guest: source: %w", err)
	}
	msg.Source = uint8(src)

	length, err := parseHexNibbles(buf[8:10])
	if err != nil {
		return msg, fmtx.Errorf("guest: length: %w", err)
	}
	msg.Length = int(length)
	msg.ClampLength()

	need := 10 + 2*msg.Length
	if len(buf) < need {
		return msg, fmtx.Errorf("guest: msg_buf too short for declared length: have %d, need %d", len(buf), need)
	}
	for i := 0; i < msg.Length; i++ {
		b, err := parseHexNibbles(buf[10+2*i : 12+2*i])
		if err != nil {
			return msg, fmtx.Errorf("guest: data[%d]: %w", i, err)
		}
		msg.Data[i] = byte(b)
	}
	return msg, nil
}

func parseHexNibbles(s []byte) (uint32, error) {
	var v uint32
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'A' && c <= 'F':
			v |= uint32(c-'A') + 10
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		default:
			return 0, fmtx.Errorf("guest: invalid hex digit %q", c)
		}
	}
	return v, nil
}

// EncodeModeBuf renders mode as the single ASCII digit the guest reads out
// of mode_buf.
func EncodeModeBuf(m types.Mode) byte { return m.ASCIIDigit() }
