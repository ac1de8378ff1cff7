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

// TxStatus is the observability snapshot for one tx worker.
type TxStatus struct {
	Sent          uint64
	Failed        uint64
	ArbiterMissed uint64
	Requeued      uint64
	Dropped       uint64
	Dead          bool
}

// TxWorker dequeues guest-emitted messages from one tx_queue and writes
// them out on its controller.
type TxWorker struct {
	id   types.ControllerID
	ctrl can.Controller
	q    *queue.Queue

	arbiterTimeout time.Duration
	popTimeout     time.Duration

	sent          atomic.Uint64
	failed        atomic.Uint64
	arbiterMissed atomic.Uint64
	requeued      atomic.Uint64
	dropped       atomic.Uint64
	dead          atomic.Bool
	heartbeat     atomic.Uint64
}

// NewTxWorker builds the tx worker for ctrl, sourcing messages from q, with
// the §4.4/§4.6 default timeouts. Call SetTimeouts to override.
func NewTxWorker(id types.ControllerID, ctrl can.Controller, q *queue.Queue) *TxWorker {
	return &TxWorker{
		id:             id,
		ctrl:           ctrl,
		q:              q,
		arbiterTimeout: defaultArbiterTimeout,
		popTimeout:     defaultTxPopTimeout,
	}
}

// SetTimeouts overrides this worker's bounded waits from t, leaving any zero
// field at its default.
func (w *TxWorker) SetTimeouts(t Timeouts) {
	w.arbiterTimeout = orDefault(t.Arbiter, w.arbiterTimeout)
	w.popTimeout = orDefault(t.Pop, w.popTimeout)
}

// Open configures and opens the underlying controller. A failed open marks
// the worker dead; it is local to this controller's rx/tx pair (§4.5).
func (w *TxWorker) Open(cfg can.Config) error {
	if err := w.ctrl.Open(cfg); err != nil {
		w.dead.Store(true)
		return err
	}
	return nil
}

// Run loops until ctx is cancelled: pop a message, optionally acquire the
// SPI arbiter, hand it to the controller, and account the outcome.
func (w *TxWorker) Run(ctx context.Context) {
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

		msg, res := w.q.PopFront(w.popTimeout)
		w.heartbeat.Add(1)
		if res != queue.Got {
			continue
		}

		if bus != nil {
			err := bus.WithBus(w.arbiterTimeout, func() error {
				return w.sendOnce(msg)
			})
			if err == arbiter.ErrTimeout {
				w.arbiterMissed.Add(1)
				if w.q.PushBack(msg, 0) == queue.Accepted {
					w.requeued.Add(1)
				} else {
					w.dropped.Add(1)
				}
			}
			continue
		}

		_ = w.sendOnce(msg)
	}
}

// sendOnce lowers and writes a single message, never retrying on failure
// (NMEA tx is best-effort at this layer, §4.6).
func (w *TxWorker) sendOnce(msg types.NMEAMessage) error {
	msg.ClampLength()
	res, err := w.ctrl.SendFrame(msg)
	switch res {
	case can.SendOk:
		w.sent.Add(1)
	default:
		w.failed.Add(1)
	}
	return err
}

// Status returns a point-in-time snapshot of this worker's counters.
func (w *TxWorker) Status() TxStatus {
	return TxStatus{
		Sent:          w.sent.Load(),
		Failed:        w.failed.Load(),
		ArbiterMissed: w.arbiterMissed.Load(),
		Requeued:      w.requeued.Load(),
		Dropped:       w.dropped.Load(),
		Dead:          w.dead.Load(),
	}
}

// Heartbeat returns the number of pop iterations completed so far.
func (w *TxWorker) Heartbeat() uint64 { return w.heartbeat.Load() }
