// Package observability implements the supervisor/observability worker
// (§4.9): a low-priority loop that snapshots every controller, queue,
// arbiter, and the guest host once a second, publishes the snapshot on the
// bus, and prints a human-readable report. It is not required for
// correctness, only debuggability on-device.
package observability

import (
	"context"
	"time"

	"tconnector-go/arbiter"
	"tconnector-go/bus"
	"tconnector-go/can"
	"tconnector-go/guest"
	"tconnector-go/queue"
	"tconnector-go/types"
	"tconnector-go/x/fmtx"
)

// TopicReport is the bus topic the periodic snapshot is published on.
var TopicReport = bus.T("observability", "report")

const tickInterval = 1 * time.Second

// ControllerSource names a controller alongside the worker-level counters
// that live outside the can.Controller interface (rx drops, tx requeues).
type ControllerSource struct {
	ID       types.ControllerID
	Ctrl     can.Controller
	RxStatus func() (received, droppedQueue, selfEchoed, arbiterMissed uint64, dead bool)
	TxStatus func() (sent, failed, arbiterMissed, requeued, dropped uint64, dead bool)
}

// Report is one snapshot's worth of system state.
type Report struct {
	At          time.Time
	Controllers []ControllerSnapshot
	Queues      []QueueSnapshot
	ArbiterMiss uint32
	GuestStats  guest.Stats
	Mode        types.Mode
}

// ControllerSnapshot is the per-controller slice of a Report.
type ControllerSnapshot struct {
	ID         types.ControllerID
	Status     can.Status
	Alerts     uint32
	RxReceived uint64
	RxDropped  uint64
	RxSelfEcho uint64
	RxArbMiss  uint64
	TxSent     uint64
	TxFailed   uint64
	TxArbMiss  uint64
	TxRequeued uint64
	TxDropped  uint64
	Dead       bool
}

// QueueSnapshot names one queue and its current depth.
type QueueSnapshot struct {
	Name  string
	Depth int
	Cap   int
}

// Reporter owns the snapshot sources and the bus connection it publishes
// on.
type Reporter struct {
	sources   []ControllerSource
	queues    []QueueSnapshot
	queueRefs []*queue.Queue
	bus       *arbiter.Arbiter // TWAI has no arbiter; Mcp controllers share one
	guestHost func() guest.Stats
	modeFn    func() types.Mode
	conn      *bus.Connection
	print     func(string)
}

// New builds a Reporter. print receives the rendered report text; pass nil
// to use fmtx.Print.
func New(conn *bus.Connection, sharedArbiter *arbiter.Arbiter, guestHost func() guest.Stats, modeFn func() types.Mode, print func(string)) *Reporter {
	if print == nil {
		print = func(s string) { fmtx.Print(s) }
	}
	return &Reporter{bus: sharedArbiter, guestHost: guestHost, modeFn: modeFn, conn: conn, print: print}
}

// AddController registers one controller's snapshot source.
func (r *Reporter) AddController(src ControllerSource) { r.sources = append(r.sources, src) }

// AddQueue registers a named queue to report the depth of.
func (r *Reporter) AddQueue(name string, q *queue.Queue) {
	r.queueRefs = append(r.queueRefs, q)
	r.queues = append(r.queues, QueueSnapshot{Name: name, Cap: q.Cap()})
}

// Run loops until ctx is cancelled, emitting one Report every tickInterval.
func (r *Reporter) Run(ctx context.Context) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rep := r.snapshot(now)
			if r.conn != nil {
				r.conn.Publish(r.conn.NewMessage(TopicReport, rep, true))
			}
			r.print(renderReport(rep))
		}
	}
}

func (r *Reporter) snapshot(now time.Time) Report {
	rep := Report{At: now}
	if r.guestHost != nil {
		rep.GuestStats = r.guestHost()
	}
	if r.modeFn != nil {
		rep.Mode = r.modeFn()
	}
	if r.bus != nil {
		rep.ArbiterMiss = r.bus.Misses()
	}

	for _, src := range r.sources {
		cs := ControllerSnapshot{ID: src.ID}
		if src.Ctrl != nil {
			cs.Status = src.Ctrl.Status()
			cs.Alerts = src.Ctrl.Alerts()
		}
		if src.RxStatus != nil {
			cs.RxReceived, cs.RxDropped, cs.RxSelfEcho, cs.RxArbMiss, cs.Dead = src.RxStatus()
		}
		if src.TxStatus != nil {
			var txDead bool
			cs.TxSent, cs.TxFailed, cs.TxArbMiss, cs.TxRequeued, cs.TxDropped, txDead = src.TxStatus()
			cs.Dead = cs.Dead || txDead
		}
		rep.Controllers = append(rep.Controllers, cs)
	}

	for i, q := range r.queueRefs {
		r.queues[i].Depth = q.Depth()
	}
	rep.Queues = append(rep.Queues, r.queues...)
	return rep
}

func renderReport(rep Report) string {
	out := fmtx.Sprintf("[%s] mode=%s guest{activations=%d traps=%d send_ok=%d send_rej=%d last=%dns}\n",
		rep.At.Format("15:04:05"), rep.Mode, rep.GuestStats.Activations, rep.GuestStats.Traps,
		rep.GuestStats.SendAccepted, rep.GuestStats.SendRejected, rep.GuestStats.LastActivationNs)
	for _, c := range rep.Controllers {
		out += fmtx.Sprintf("  %s sent=%d failed=%d received=%d rx_dropped=%d rx_echo=%d rx_arb_miss=%d tx_arb_miss=%d tx_requeued=%d tx_dropped=%d alerts=%#x dead=%t\n",
			c.ID, c.Status.MsgsToTx, c.TxFailed, c.Status.MsgsToRx, c.RxDropped, c.RxSelfEcho,
			c.RxArbMiss, c.TxArbMiss, c.TxRequeued, c.TxDropped, c.Alerts, c.Dead)
	}
	for _, q := range rep.Queues {
		out += fmtx.Sprintf("  queue %s depth=%d/%d\n", q.Name, q.Depth, q.Cap)
	}
	return out
}
