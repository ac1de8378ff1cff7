package workers

import (
	"context"
	"testing"
	"time"

	"tconnector-go/can"
	"tconnector-go/codec"
	"tconnector-go/queue"
	"tconnector-go/types"
)

func TestRxWorkerFiltersSelfEcho(t *testing.T) {
	periph := can.NewFakePeripheral()
	cod := codec.New(types.Controller0, func() int64 { return 0 })
	ctrl := can.NewTwai(types.Controller0, periph, cod)
	q := queue.New(4)
	w := NewRxWorker(types.Controller0, ctrl, q)
	if err := w.Open(can.Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	echoFrame := cod.Lower(types.NMEAMessage{Source: 14, Length: 1})[0]
	periph.InjectRx(echoFrame)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	if _, res := q.PopFront(0); res != queue.TimedOut {
		t.Fatal("expected no message enqueued for a self-echoed source")
	}
	if w.Status().SelfEchoed == 0 {
		t.Fatal("expected SelfEchoed counter to increment")
	}
}

func TestRxWorkerEnqueuesNonEchoFrames(t *testing.T) {
	periph := can.NewFakePeripheral()
	cod := codec.New(types.Controller1, func() int64 { return 0 })
	ctrl := can.NewTwai(types.Controller1, periph, cod)
	q := queue.New(4)
	w := NewRxWorker(types.Controller1, ctrl, q)
	_ = w.Open(can.Config{})

	frame := cod.Lower(types.NMEAMessage{Source: 2, PGN: 129025, Length: 2})[0]
	periph.InjectRx(frame)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer cancel()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if msg, res := q.PopFront(20 * time.Millisecond); res == queue.Got {
			if msg.ControllerID != types.Controller1 || msg.PGN != 129025 {
				t.Fatalf("unexpected message: %+v", msg)
			}
			return
		}
	}
	t.Fatal("timed out waiting for rx worker to enqueue the frame")
}

func TestRxWorkerOpenFailureMarksDead(t *testing.T) {
	periph := &failingOpenPeripheral{FakePeripheral: can.NewFakePeripheral()}
	cod := codec.New(types.Controller0, func() int64 { return 0 })
	ctrl := can.NewTwai(types.Controller0, periph, cod)
	w := NewRxWorker(types.Controller0, ctrl, queue.New(1))
	if err := w.Open(can.Config{}); err == nil {
		t.Fatal("expected Open to fail")
	}
	if !w.Status().Dead {
		t.Fatal("expected worker to be marked dead after a failed open")
	}
}

func TestRxWorkerSetTimeoutsKeepsDefaultsForZeroFields(t *testing.T) {
	periph := can.NewFakePeripheral()
	cod := codec.New(types.Controller0, func() int64 { return 0 })
	ctrl := can.NewTwai(types.Controller0, periph, cod)
	w := NewRxWorker(types.Controller0, ctrl, queue.New(1))

	w.SetTimeouts(Timeouts{Arbiter: 5 * time.Millisecond})

	if w.arbiterTimeout != 5*time.Millisecond {
		t.Fatalf("arbiterTimeout = %v, want 5ms", w.arbiterTimeout)
	}
	if w.pushTimeout != defaultRxPushTimeout {
		t.Fatalf("pushTimeout = %v, want untouched default %v", w.pushTimeout, defaultRxPushTimeout)
	}
	if w.yieldInterval != defaultYieldInterval {
		t.Fatalf("yieldInterval = %v, want untouched default %v", w.yieldInterval, defaultYieldInterval)
	}
}

type failingOpenPeripheral struct{ *can.FakePeripheral }

func (f *failingOpenPeripheral) Open(int, int) error { return errOpenFailed }

var errOpenFailed = &openError{}

type openError struct{}

func (*openError) Error() string { return "open failed" }
