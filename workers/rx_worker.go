// Package workers implements the per-controller rx/tx loops (§4.5, §4.6):
// the goroutines that drain a CAN controller into rx_queue and drain a
// tx_queue out to a controller, each with bounded waits and its own
// counters so a stuck controller or arbiter never stalls its peers.
package workers

import (
	"context"
	"sync/atomic"
	"time"

	"tconnector-go/arbiter"
	"tconnector-go/can"
	"tconnector-go/queue"
	"tconnector-go/types"
)

// selfEchoSource is the source address an rx worker drops silently (§4.5,
// §9): the controller sees its own emitted frames echoed back and must not
// re-enqueue them.
const selfEchoSource = 14

// RxStatus is the observability snapshot for one rx worker.
type RxStatus struct {
	Received      uint64
	DroppedQueue  uint64
	SelfEchoed    uint64
	ArbiterMissed uint64
	Dead          bool
}

// RxWorker drains one controller into rx_queue.
type RxWorker struct {
	id   types.ControllerID
	ctrl can.Controller
	q    *queue.Queue

	arbiterTimeout time.Duration
	pushTimeout    time.Duration
	yieldInterval  time.Duration

	received      atomic.Uint64
	droppedQueue  atomic.Uint64
	selfEchoed    atomic.Uint64
	arbiterMissed atomic.Uint64
	dead          atomic.Bool
	heartbeat     atomic.Uint64
}

// NewRxWorker builds the rx worker for ctrl, enqueueing assembled messages
// onto q, with the §4.3-§4.5 default timeouts. Call SetTimeouts to override.
func NewRxWorker(id types.ControllerID, ctrl can.Controller, q *queue.Queue) *RxWorker {
	return &RxWorker{
		id:             id,
		ctrl:           ctrl,
		q:              q,
		arbiterTimeout: defaultArbiterTimeout,
		pushTimeout:    defaultRxPushTimeout,
		yieldInterval:  defaultYieldInterval,
	}
}

// SetTimeouts overrides this worker's bounded waits from t, leaving any zero
// field at its default.
func (w *RxWorker) SetTimeouts(t Timeouts) {
	w.arbiterTimeout = orDefault(t.Arbiter, w.arbiterTimeout)
	w.pushTimeout = orDefault(t.Push, w.pushTimeout)
	w.yieldInterval = orDefault(t.Yield, w.yieldInterval)
}

// Open configures and opens the underlying controller, installing this
// worker's handler. A failed open marks the worker dead but does not panic:
// per §4.5, that failure is local to this controller's rx/tx pair.
func (w *RxWorker) Open(cfg can.Config) error {
	cfg.MsgHandler = w.handle
	if err := w.ctrl.Open(cfg); err != nil {
		w.dead.Store(true)
		return err
	}
	return nil
}

// handle is installed as the controller's msg_handler (§4.1); it runs
// synchronously inside poll_received on the worker's own goroutine.
func (w *RxWorker) handle(msg types.NMEAMessage) {
	if msg.Source == selfEchoSource {
		w.selfEchoed.Add(1)
		return
	}
	msg.ClampLength()
	msg.ControllerID = w.id
	if w.q.PushBack(msg, w.pushTimeout) != queue.Accepted {
		w.droppedQueue.Add(1)
		return
	}
	w.received.Add(1)
}

// Run loops until ctx is cancelled, draining frames once per iteration
// (acquiring the SPI arbiter first for Mcp controllers) and yielding
// between iterations.
func (w *RxWorker) Run(ctx context.Context) {
	bus := w.ctrl.Arbiter()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.dead.Load() {
			return
		}

		if bus != nil {
			err := bus.WithBus(w.arbiterTimeout, func() error {
				w.ctrl.PollReceived()
				return nil
			})
			if err == arbiter.ErrTimeout {
				w.arbiterMissed.Add(1)
			}
		} else {
			w.ctrl.PollReceived()
		}

		w.heartbeat.Add(1)

		t := time.NewTimer(w.yieldInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Status returns a point-in-time snapshot of this worker's counters.
func (w *RxWorker) Status() RxStatus {
	return RxStatus{
		Received:      w.received.Load(),
		DroppedQueue:  w.droppedQueue.Load(),
		SelfEchoed:    w.selfEchoed.Load(),
		ArbiterMissed: w.arbiterMissed.Load(),
		Dead:          w.dead.Load(),
	}
}

// Heartbeat returns the number of poll iterations completed so far, used by
// the observability worker to detect a stalled loop.
func (w *RxWorker) Heartbeat() uint64 { return w.heartbeat.Load() }
