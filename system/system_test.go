package system

import (
	"context"
	"sync"
	"testing"

	"tconnector-go/can"
	"tconnector-go/codec"
	"tconnector-go/config"
	"tconnector-go/gpio"
	"tconnector-go/queue"
	"tconnector-go/types"
	"tconnector-go/workers"
)

// fakePin is a minimal gpio.IRQPin, duplicated locally rather than exported
// from the mode package's test file.
type fakePin struct {
	mu      sync.Mutex
	handler func()
}

func (p *fakePin) ConfigureInput(gpio.Pull) error { return nil }
func (p *fakePin) ConfigureOutput(bool) error     { return nil }
func (p *fakePin) Number() int                    { return 0 }
func (p *fakePin) Get() bool                      { return false }
func (p *fakePin) Set(bool)                       {}
func (p *fakePin) SetIRQ(edge gpio.Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	return nil
}
func (p *fakePin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = nil
	return nil
}

// emptyWasm is the smallest valid WebAssembly module: magic + version, no
// sections. It compiles and instantiates but exports nothing, so Bootstrap
// is expected to fail at the guest link step.
var emptyWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestBootstrapWiresEverythingAndSurfacesGuestLinkFailure(t *testing.T) {
	deps := Dependencies{
		Peripherals: [types.NumControllers]can.Peripheral{
			can.NewFakePeripheral(), can.NewFakePeripheral(), can.NewFakePeripheral(),
		},
		ModeMSB: &fakePin{},
		ModeLSB: &fakePin{},
		Wasm:    emptyWasm,
	}
	_, err := Bootstrap(context.Background(), config.Default(), deps)
	if err == nil {
		t.Fatal("expected Bootstrap to fail linking a guest module with no exports")
	}
}

// failingOpenPeripheral fails every Open call, duplicated locally in the
// same spirit as workers' own failingOpenPeripheral test helper.
type failingOpenPeripheral struct{ *can.FakePeripheral }

func (f *failingOpenPeripheral) Open(int, int) error { return errOpenFailed }

type openError struct{}

func (*openError) Error() string { return "simulated open failure" }

var errOpenFailed = &openError{}

// TestOpenControllersIsolatesAPerControllerFailure exercises §4.5/§7's
// fault-isolation rule directly: one controller failing to open must mark
// only that controller's rx/tx pair dead, leaving the rest able to open.
func TestOpenControllersIsolatesAPerControllerFailure(t *testing.T) {
	s := &System{Cfg: config.Default(), printer: func(string) {}}

	for i := 0; i < types.NumControllers; i++ {
		id := types.ControllerID(i)
		cod := codec.New(id, func() int64 { return 0 })
		var periph can.Peripheral = can.NewFakePeripheral()
		if i == 1 {
			periph = &failingOpenPeripheral{FakePeripheral: can.NewFakePeripheral()}
		}
		ctrl := can.NewTwai(id, periph, cod)
		s.RxWorkers[i] = workers.NewRxWorker(id, ctrl, queue.New(4))
		s.TxWorkers[i] = workers.NewTxWorker(id, ctrl, queue.New(4))
	}

	s.openControllers()

	for i := 0; i < types.NumControllers; i++ {
		wantDead := i == 1
		if got := s.RxWorkers[i].Status().Dead; got != wantDead {
			t.Fatalf("controller %d rx worker: Dead = %v, want %v", i, got, wantDead)
		}
		if got := s.TxWorkers[i].Status().Dead; got != wantDead {
			t.Fatalf("controller %d tx worker: Dead = %v, want %v", i, got, wantDead)
		}
	}
}

func TestControllerQueueNameCoversAllControllers(t *testing.T) {
	want := []string{"tx_queue[0]", "tx_queue[1]", "tx_queue[2]"}
	for i, w := range want {
		if got := controllerQueueName(i); got != w {
			t.Fatalf("controllerQueueName(%d) = %q, want %q", i, got, w)
		}
	}
}
