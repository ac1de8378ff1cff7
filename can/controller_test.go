package can

import (
	"errors"
	"testing"

	"tconnector-go/arbiter"
	"tconnector-go/codec"
	"tconnector-go/types"
)

func TestTwaiSendAndPoll(t *testing.T) {
	periph := NewFakePeripheral()
	cod := codec.New(types.Controller0, func() int64 { return 1000 })

	var got []types.NMEAMessage
	c := NewTwai(types.Controller0, periph, cod)
	if err := c.Open(Config{MsgHandler: func(m types.NMEAMessage) { got = append(got, m) }}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	msg := types.NMEAMessage{Priority: 6, PGN: 127508, Source: 14, Length: 2}
	msg.Data[0], msg.Data[1] = 0x01, 0x02
	if res, err := c.SendFrame(msg); res != SendOk || err != nil {
		t.Fatalf("SendFrame: res=%v err=%v", res, err)
	}
	if len(periph.Sent()) != 1 {
		t.Fatalf("expected 1 frame sent, got %d", len(periph.Sent()))
	}

	periph.InjectRx(periph.Sent()[0])
	if res := c.PollReceived(); res != Got {
		t.Fatalf("expected Got, got %v", res)
	}
	if len(got) != 1 || got[0].PGN != 127508 {
		t.Fatalf("handler did not receive expected message: %+v", got)
	}

	if c.Arbiter() != nil {
		t.Fatal("TWAI controller must report a nil arbiter")
	}
}

func TestTwaiSendErrorPropagates(t *testing.T) {
	periph := NewFakePeripheral()
	periph.SetSendErr(errors.New("bus fault"))
	cod := codec.New(types.Controller0, func() int64 { return 0 })
	c := NewTwai(types.Controller0, periph, cod)
	_ = c.Open(Config{})

	if res, err := c.SendFrame(types.NMEAMessage{}); res != SendErr || err == nil {
		t.Fatalf("expected SendErr with non-nil error, got res=%v err=%v", res, err)
	}
}

func TestMCPControllerUsesSharedArbiter(t *testing.T) {
	bus := arbiter.New()
	periphA := NewFakePeripheral()
	periphB := NewFakePeripheral()
	codA := codec.New(types.Controller1, func() int64 { return 0 })
	codB := codec.New(types.Controller2, func() int64 { return 0 })

	a := NewMCP(types.Controller1, periphA, codA, bus)
	b := NewMCP(types.Controller2, periphB, codB, bus)

	if a.Arbiter() != bus || b.Arbiter() != bus {
		t.Fatal("expected both MCP controllers to share the same arbiter")
	}
}

func TestPollReceivedDrainsUntilEmpty(t *testing.T) {
	periph := NewFakePeripheral()
	cod := codec.New(types.Controller0, func() int64 { return 0 })
	var count int
	c := NewTwai(types.Controller0, periph, cod)
	_ = c.Open(Config{MsgHandler: func(types.NMEAMessage) { count++ }})

	for i := 0; i < 3; i++ {
		periph.InjectRx(types.Frame{ID: uint32(i), Length: 0})
	}
	if res := c.PollReceived(); res != Got {
		t.Fatalf("expected Got, got %v", res)
	}
	if count != 3 {
		t.Fatalf("expected 3 messages delivered, got %d", count)
	}
	if res := c.PollReceived(); res != Empty {
		t.Fatalf("expected Empty after drain, got %v", res)
	}
}
