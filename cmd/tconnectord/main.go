// Command tconnectord is the host demo binary for the T-connector message
// plane: three CAN controllers (fakes, on a host build), a mode supervisor,
// the wasm guest host, and the observability reporter, all wired through
// system.Bootstrap and run until SIGINT/SIGTERM.
//
// Run:
//
//	go run ./cmd/tconnectord -device tconnector-board -wasm guest.wasm
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tconnector-go/can"
	"tconnector-go/config"
	"tconnector-go/gpio"
	"tconnector-go/observability"
	"tconnector-go/system"
	"tconnector-go/types"
	"tconnector-go/x/strx"
)

func main() {
	device := flag.String("device", "", "embedded device config to load (empty: built-in default)")
	wasmPath := flag.String("wasm", "", "path to the guest wasm module (empty: use the device config's wasm_path)")
	flag.Parse()

	fmt.Println("\n== tconnectord: T-connector message plane demo ==")

	cfg, err := config.Load(*device)
	if err != nil {
		fmt.Printf("config.Load(%q): %v (continuing with defaults)\n", *device, err)
	}

	path := strx.Coalesce(*wasmPath, cfg.WasmPath)
	wasm, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("reading guest module %q: %v\n", path, err)
		os.Exit(1)
	}

	deps := system.Dependencies{
		Peripherals: [types.NumControllers]can.Peripheral{
			can.NewFakePeripheral(),
			can.NewFakePeripheral(),
			can.NewFakePeripheral(),
		},
		ModeMSB: &hostPin{},
		ModeLSB: &hostPin{},
		Wasm:    wasm,
		Printer: func(s string) { fmt.Println(s) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sys, err := system.Bootstrap(ctx, cfg, deps)
	if err != nil {
		fmt.Printf("bootstrap: %v\n", err)
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	conn := sys.Bus.NewConnection("tconnectord-main")
	reportSub := conn.Subscribe(observability.TopicReport)
	defer conn.Unsubscribe(reportSub)

	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	for {
		select {
		case <-sigc:
			fmt.Println("shutting down...")
			cancel()
		case err := <-done:
			if err != nil {
				fmt.Printf("system exited: %v\n", err)
				os.Exit(1)
			}
			return
		case m := <-reportSub.Channel():
			if rep, ok := m.Payload.(observability.Report); ok {
				fmt.Printf("[%s] report received, mode=%v\n", time.Now().Format(time.RFC3339), rep.Mode)
			}
		}
	}
}

// hostPin is a no-op gpio.IRQPin for the host demo, standing in for the
// mode-select GPIOs a real board wires to jumpers or a front-panel switch.
type hostPin struct{ handler func() }

func (p *hostPin) ConfigureInput(gpio.Pull) error { return nil }
func (p *hostPin) ConfigureOutput(bool) error     { return nil }
func (p *hostPin) Number() int                    { return 0 }
func (p *hostPin) Get() bool                      { return false }
func (p *hostPin) Set(bool)                       {}
func (p *hostPin) SetIRQ(edge gpio.Edge, handler func()) error {
	p.handler = handler
	return nil
}
func (p *hostPin) ClearIRQ() error {
	p.handler = nil
	return nil
}
