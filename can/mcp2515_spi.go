package can

import (
	"tconnector-go/gpio"
	"tconnector-go/types"

	"tinygo.org/x/drivers"
)

// MCP2515 SPI instruction set (Microchip DS20001801).
const (
	mcpInstrReset       = 0xC0
	mcpInstrRead        = 0x03
	mcpInstrWrite       = 0x02
	mcpInstrReadStatus  = 0xA0
	mcpInstrBitModify   = 0x05
	mcpInstrRTS         = 0x80 // | (1<<n) for TXBn
	mcpInstrRXStatus    = 0xB0
)

const (
	regCANCTRL = 0x0F
	regCANSTAT = 0x0E
	regCANINTF = 0x2C
	regTXB0CTRL = 0x30
	regTXB0SIDH = 0x31
	regRXB0CTRL = 0x60
	regRXB0SIDH = 0x61
)

// SPIPeripheral is the low-level MCP2515 driver: the concrete, minimal
// implementation of the external "open, send_frame, poll_for_frame, alerts"
// boundary named in §4.1/§1. Production register-level CAN peripheral
// driving is explicitly out of this specification's scope; this type exists
// so the controller abstraction above it (component A) has something real
// to drive tinygo.org/x/drivers.SPI through, and so the SPI arbiter (§4.4)
// has genuine contention to arbitrate in tests.
type SPIPeripheral struct {
	bus drivers.SPI
	cs  gpio.Pin

	sent, failed, received int
	overruns, missed       int
}

// NewSPIPeripheral wraps a configured SPI bus and chip-select pin. bus is
// compatible with tinygo.org/x/drivers.SPI (Tx(w, r []byte) error).
func NewSPIPeripheral(bus drivers.SPI, cs gpio.Pin) *SPIPeripheral {
	return &SPIPeripheral{bus: bus, cs: cs}
}

func (p *SPIPeripheral) txn(w, r []byte) error {
	p.cs.Set(false)
	defer p.cs.Set(true)
	return p.bus.Tx(w, r)
}

func (p *SPIPeripheral) Open(msgBufSize, rxFrameBufSize int) error {
	_ = msgBufSize
	_ = rxFrameBufSize
	if err := p.txn([]byte{mcpInstrReset}, nil); err != nil {
		return err
	}
	// Listen-and-send: normal mode, no loopback, forward-to-serial disabled
	// is the default (there is no serial path on this chip).
	return p.txn([]byte{mcpInstrWrite, regCANCTRL, 0x00}, nil)
}

func (p *SPIPeripheral) SendFrame(f types.Frame) error {
	buf := make([]byte, 6+f.Length)
	buf[0] = mcpInstrWrite
	buf[1] = regTXB0SIDH
	buf[2] = byte(f.ID >> 21)
	buf[3] = byte(f.ID >> 13)
	buf[4] = byte(f.ID >> 5)
	buf[5] = f.Length
	copy(buf[6:], f.Data[:f.Length])
	if err := p.txn(buf, nil); err != nil {
		p.failed++
		return err
	}
	if err := p.txn([]byte{mcpInstrRTS | 0x01}, nil); err != nil {
		p.failed++
		return err
	}
	p.sent++
	return nil
}

func (p *SPIPeripheral) PollFrame() (types.Frame, bool) {
	status := make([]byte, 2)
	if err := p.txn([]byte{mcpInstrReadStatus, 0x00}, status); err != nil {
		return types.Frame{}, false
	}
	if status[1]&0x01 == 0 { // RX0IF not set: nothing pending
		return types.Frame{}, false
	}
	hdr := make([]byte, 6)
	if err := p.txn([]byte{mcpInstrRead, regRXB0SIDH, 0, 0, 0, 0}, hdr); err != nil {
		p.overruns++
		return types.Frame{}, false
	}
	length := hdr[5] & 0x0F
	data := make([]byte, length)
	if length > 0 {
		if err := p.txn(append([]byte{mcpInstrRead, regRXB0SIDH + 6}, make([]byte, length)...), data); err != nil {
			p.overruns++
			return types.Frame{}, false
		}
	}
	var f types.Frame
	f.ID = uint32(hdr[2])<<21 | uint32(hdr[3])<<13 | uint32(hdr[4])<<5
	f.Length = length
	copy(f.Data[:], data)
	_ = p.txn([]byte{mcpInstrBitModify, regCANINTF, 0x01, 0x00}, nil) // clear RX0IF
	p.received++
	return f, true
}

func (p *SPIPeripheral) Alerts() uint32 {
	buf := make([]byte, 2)
	_ = p.txn([]byte{mcpInstrRead, regCANINTF, 0}, buf)
	return uint32(buf[1])
}

func (p *SPIPeripheral) Status() Status {
	return Status{MsgsToRx: p.received, MsgsToTx: p.sent, RxOverruns: p.overruns, RxMissed: p.missed}
}
