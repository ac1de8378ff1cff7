package can

import (
	"sync"

	"tconnector-go/types"
)

// FakePeripheral implements Peripheral entirely in memory: no real TWAI or
// MCP2515 hardware is reachable from a host build. It exists for tests and
// for the host-build demo binary, in the same spirit as the teacher's
// HostI2C/FakePin host-side factories.
type FakePeripheral struct {
	mu       sync.Mutex
	rxQueue  []types.Frame
	sent     []types.Frame
	alerts   uint32
	sendErr  error
	overruns int
	missed   int
}

func NewFakePeripheral() *FakePeripheral { return &FakePeripheral{} }

func (f *FakePeripheral) Open(msgBufSize, rxFrameBufSize int) error {
	_ = msgBufSize
	_ = rxFrameBufSize
	return nil
}

func (f *FakePeripheral) SendFrame(fr types.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, fr)
	return nil
}

func (f *FakePeripheral) PollFrame() (types.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rxQueue) == 0 {
		return types.Frame{}, false
	}
	fr := f.rxQueue[0]
	f.rxQueue = f.rxQueue[1:]
	return fr, true
}

func (f *FakePeripheral) Alerts() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.alerts
	f.alerts = 0
	return a
}

func (f *FakePeripheral) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{MsgsToTx: len(f.sent), MsgsToRx: len(f.sent), RxOverruns: f.overruns, RxMissed: f.missed}
}

// InjectRx queues a frame as if it had arrived over the bus.
func (f *FakePeripheral) InjectRx(fr types.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rxQueue = append(f.rxQueue, fr)
}

// SetSendErr makes every subsequent SendFrame fail with err, simulating a
// bus fault. Pass nil to clear it.
func (f *FakePeripheral) SetSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// RaiseAlert marks a, returned (and cleared) on the next Alerts call.
func (f *FakePeripheral) RaiseAlert(a uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts |= a
}

// Sent returns a copy of everything SendFrame has accepted so far.
func (f *FakePeripheral) Sent() []types.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Frame, len(f.sent))
	copy(out, f.sent)
	return out
}
