package mode

import (
	"context"
	"sync"
	"testing"
	"time"

	"tconnector-go/gpio"
	"tconnector-go/types"
)

// fakePin is a minimal gpio.IRQPin for tests, in the spirit of the host
// FakePin used elsewhere in this codebase's ancestry.
type fakePin struct {
	mu      sync.Mutex
	level   bool
	edge    gpio.Edge
	handler func()
}

func (p *fakePin) ConfigureInput(gpio.Pull) error  { return nil }
func (p *fakePin) ConfigureOutput(bool) error      { return nil }
func (p *fakePin) Number() int                     { return 0 }
func (p *fakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}
func (p *fakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}
func (p *fakePin) SetIRQ(edge gpio.Edge, handler func()) error {
	p.mu.Lock()
	p.edge = edge
	p.handler = handler
	p.mu.Unlock()
	return nil
}
func (p *fakePin) ClearIRQ() error {
	p.mu.Lock()
	p.handler = nil
	p.mu.Unlock()
	return nil
}

func TestSupervisorInitialModeIsSampledAtConstruction(t *testing.T) {
	msb, lsb := &fakePin{level: true}, &fakePin{level: false}
	s, err := New(msb, lsb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Mode() != types.ModeAttackA {
		t.Fatalf("expected initial mode AttackA (msb=1,lsb=0), got %v", s.Mode())
	}
}

func TestSupervisorPublishesModeOnEdge(t *testing.T) {
	msb, lsb := &fakePin{}, &fakePin{}
	s, err := New(msb, lsb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Mode() != types.ModeOff {
		t.Fatalf("expected initial mode Off, got %v", s.Mode())
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	defer cancel()

	msb.Set(true)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if s.Mode() == types.ModeAttackA {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for supervisor to observe the pin edge")
}
