package guest

import (
	"testing"

	"tconnector-go/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := types.NMEAMessage{
		ControllerID: types.Controller1,
		Priority:     6,
		PGN:          129025,
		Source:       2,
		Length:       8,
	}
	copy(msg.Data[:], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	buf := EncodeMsgBuf(msg)
	if len(buf) != 10+2*8 {
		t.Fatalf("unexpected buffer length: %d", len(buf))
	}

	got, err := DecodeMsgBuf(buf)
	if err != nil {
		t.Fatalf("DecodeMsgBuf: %v", err)
	}
	if got.ControllerID != msg.ControllerID || got.Priority != msg.Priority ||
		got.PGN != msg.PGN || got.Length != msg.Length {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
	for i := 0; i < msg.Length; i++ {
		if got.Data[i] != msg.Data[i] {
			t.Fatalf("data[%d] mismatch: got %x, want %x", i, got.Data[i], msg.Data[i])
		}
	}
}

func TestEncodeTruncatesSourceToLowNibble(t *testing.T) {
	msg := types.NMEAMessage{Source: 0xFE} // high nibble 0xF, low nibble 0xE
	buf := EncodeMsgBuf(msg)
	got, err := DecodeMsgBuf(buf)
	if err != nil {
		t.Fatalf("DecodeMsgBuf: %v", err)
	}
	if got.Source != 0x0E {
		t.Fatalf("expected the known source truncation quirk (0xFE -> 0x0E), got %#x", got.Source)
	}
}

func TestEncodeMaxLengthBuffer(t *testing.T) {
	msg := types.NMEAMessage{Length: types.MaxDataLen}
	buf := EncodeMsgBuf(msg)
	if len(buf) != MsgBufSize {
		t.Fatalf("expected max-length buffer to be exactly MsgBufSize=%d, got %d", MsgBufSize, len(buf))
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeMsgBuf([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected an error decoding a too-short buffer")
	}
}

func TestEncodeModeBuf(t *testing.T) {
	if got := EncodeModeBuf(types.ModeAttackB); got != '3' {
		t.Fatalf("expected ModeAttackB to encode as '3', got %q", got)
	}
}
