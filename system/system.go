// Package system is the bootstrap (§4.10): it wires every queue, arbiter,
// controller, and worker into one explicit value constructed by the caller,
// replacing the source's process-wide statics (§9 "Global instances") with
// a System built in main and passed nowhere — each worker only ever holds
// the references it needs.
package system

import (
	"context"
	"sync"
	"time"

	"tconnector-go/arbiter"
	"tconnector-go/bus"
	"tconnector-go/can"
	"tconnector-go/codec"
	"tconnector-go/config"
	"tconnector-go/gpio"
	"tconnector-go/guest"
	"tconnector-go/mode"
	"tconnector-go/observability"
	"tconnector-go/queue"
	"tconnector-go/types"
	"tconnector-go/workers"
	"tconnector-go/x/fmtx"
	"tconnector-go/x/timex"
)

// defaultGuestPopTimeout and defaultGuestYield bound the guest steady-state
// loop (§4.7 step 1: "rx_queue.pop_front(100 ms). On TimedOut: yield
// 10 ms"); Bootstrap overrides them from cfg.Timeouts.
const (
	defaultGuestPopTimeout = 100 * time.Millisecond
	defaultGuestYield      = 10 * time.Millisecond
)

// Dependencies are the board-specific collaborators Bootstrap cannot
// construct itself: the low-level CAN peripherals, the two mode GPIO pins,
// the embedded guest .wasm bytes, and a clock. A host build supplies fakes
// (can.NewFakePeripheral, a couple of in-memory gpio.IRQPin); an on-device
// build supplies real TWAI/MCP2515 peripherals and machine-package pins.
type Dependencies struct {
	Peripherals [types.NumControllers]can.Peripheral
	ModeMSB     gpio.IRQPin
	ModeLSB     gpio.IRQPin
	Wasm        []byte
	Clock       func() int64
	Printer     func(string)
}

// System is every wired component, held explicitly rather than as package
// globals.
type System struct {
	Cfg config.Config
	Bus *bus.Bus

	RxQueue  *queue.Queue
	TxQueues [types.NumControllers]*queue.Queue

	Arbiter *arbiter.Arbiter

	Controllers [types.NumControllers]can.Controller
	RxWorkers   [types.NumControllers]*workers.RxWorker
	TxWorkers   [types.NumControllers]*workers.TxWorker

	ModeSupervisor *mode.Supervisor
	GuestHost      *guest.Host
	Reporter       *observability.Reporter

	guestPopTimeout time.Duration
	guestYield      time.Duration
	printer         func(string)

	conn *bus.Connection
}

// Bootstrap constructs every component from cfg and deps but starts
// nothing; call Run to spawn workers.
func Bootstrap(ctx context.Context, cfg config.Config, deps Dependencies) (*System, error) {
	if deps.Clock == nil {
		deps.Clock = timex.NowMs
	}
	if deps.Printer == nil {
		deps.Printer = func(string) {}
	}

	s := &System{Cfg: cfg, printer: deps.Printer}
	s.Bus = bus.NewBus(64)
	s.conn = s.Bus.NewConnection("system")

	s.RxQueue = queue.New(cfg.Queues.RxQueueCap)
	for i := range s.TxQueues {
		s.TxQueues[i] = queue.New(cfg.Queues.TxQueueCap)
	}
	s.Arbiter = arbiter.New()

	sup, err := mode.New(deps.ModeMSB, deps.ModeLSB)
	if err != nil {
		return nil, err
	}
	s.ModeSupervisor = sup

	for i := 0; i < types.NumControllers; i++ {
		id := types.ControllerID(i)
		cod := codec.New(id, deps.Clock)
		var ctrl can.Controller
		if cfg.Controllers[i].Backend == "twai" {
			ctrl = can.NewTwai(id, deps.Peripherals[i], cod)
		} else {
			ctrl = can.NewMCP(id, deps.Peripherals[i], cod, s.Arbiter)
		}
		s.Controllers[i] = ctrl
		s.RxWorkers[i] = workers.NewRxWorker(id, ctrl, s.RxQueue)
		s.TxWorkers[i] = workers.NewTxWorker(id, ctrl, s.TxQueues[i])
		wt := workers.Timeouts{
			Arbiter: time.Duration(cfg.Timeouts.ArbiterMs) * time.Millisecond,
			Push:    time.Duration(cfg.Timeouts.RxPushMs) * time.Millisecond,
			Pop:     time.Duration(cfg.Timeouts.TxPopMs) * time.Millisecond,
			Yield:   time.Duration(cfg.Timeouts.YieldMs) * time.Millisecond,
		}
		s.RxWorkers[i].SetTimeouts(wt)
		s.TxWorkers[i].SetTimeouts(wt)
	}

	s.guestPopTimeout = durationOrDefault(cfg.Timeouts.TxPopMs, defaultGuestPopTimeout)
	s.guestYield = durationOrDefault(cfg.Timeouts.YieldMs, defaultGuestYield)

	sink := &guest.QueueTxSink{Queues: s.TxQueues}
	gh, err := guest.New(ctx, guest.Config{
		Wasm:            deps.Wasm,
		Sink:            sink,
		ModeFn:          s.ModeSupervisor.Mode,
		Printer:         deps.Printer,
		SendPushTimeout: time.Duration(cfg.Timeouts.SendMsgPushMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	s.GuestHost = gh

	s.Reporter = observability.New(s.conn, s.Arbiter, s.GuestHost.Stats, s.ModeSupervisor.Mode, deps.Printer)
	for i := 0; i < types.NumControllers; i++ {
		i := i
		s.Reporter.AddController(observability.ControllerSource{
			ID:   types.ControllerID(i),
			Ctrl: s.Controllers[i],
			RxStatus: func() (uint64, uint64, uint64, uint64, bool) {
				st := s.RxWorkers[i].Status()
				return st.Received, st.DroppedQueue, st.SelfEchoed, st.ArbiterMissed, st.Dead
			},
			TxStatus: func() (uint64, uint64, uint64, uint64, uint64, bool) {
				st := s.TxWorkers[i].Status()
				return st.Sent, st.Failed, st.ArbiterMissed, st.Requeued, st.Dropped, st.Dead
			},
		})
	}
	s.Reporter.AddQueue("rx_queue", s.RxQueue)
	for i := range s.TxQueues {
		s.Reporter.AddQueue(controllerQueueName(i), s.TxQueues[i])
	}

	return s, nil
}

// durationOrDefault converts ms to a duration, falling back to def when ms
// is not positive (an omitted config field).
func durationOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func controllerQueueName(i int) string {
	switch i {
	case 0:
		return "tx_queue[0]"
	case 1:
		return "tx_queue[1]"
	default:
		return "tx_queue[2]"
	}
}

// openControllers opens every controller's rx/tx pair independently (§4.5,
// §7): a failed open marks that pair dead and is logged, but never aborts
// the loop, so one bad controller never stops its peers from opening. The tx
// worker opens first: each Open installs cfg's handler, so the rx worker's
// Open, which installs its own handler, comes last.
func (s *System) openControllers() {
	for i := 0; i < types.NumControllers; i++ {
		cfg := can.Config{MsgBufSize: 8, RxFrameBufSize: s.Cfg.RxFrameBuf}
		if err := s.TxWorkers[i].Open(cfg); err != nil {
			s.printer(fmtx.Sprintf("controller %d: tx open failed, pair disabled: %s", i, err.Error()))
		}
		if err := s.RxWorkers[i].Open(cfg); err != nil {
			s.printer(fmtx.Sprintf("controller %d: rx open failed, pair disabled: %s", i, err.Error()))
		}
	}
}

// Run opens every controller and spawns all workers. It blocks until ctx is
// cancelled, then waits for every worker to return before closing the guest
// runtime. A controller whose Open failed is left dead: its rx/tx pair's
// goroutines still start but return immediately (RxWorker.Run/TxWorker.Run
// both check Dead first), while every other controller's pair, the mode
// supervisor, the reporter, and the guest loop run normally.
func (s *System) Run(ctx context.Context) error {
	s.openControllers()

	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() { defer wg.Done(); fn(ctx) }()
	}

	for i := 0; i < types.NumControllers; i++ {
		spawn(s.RxWorkers[i].Run)
		spawn(s.TxWorkers[i].Run)
	}
	spawn(s.ModeSupervisor.Run)
	spawn(s.Reporter.Run)
	spawn(s.guestLoop)

	<-ctx.Done()
	wg.Wait()
	return s.GuestHost.Close(context.Background())
}

// guestLoop is the guest host's steady state (§4.7): pop rx_queue, activate
// the guest with whatever arrived, or yield on an empty queue.
func (s *System) guestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, res := s.RxQueue.PopFront(s.guestPopTimeout)
		if res != queue.Got {
			t := time.NewTimer(s.guestYield)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}
		s.GuestHost.Activate(ctx, msg)
	}
}
