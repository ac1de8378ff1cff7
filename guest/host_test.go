package guest

import (
	"testing"
	"time"

	"tconnector-go/queue"
	"tconnector-go/types"
)

func TestValidateSendMsgArgsRejectsBadController(t *testing.T) {
	if _, ok := validateSendMsgArgs(3, 0, 0, 0, 0); ok {
		t.Fatal("expected controller_id=3 to be rejected")
	}
	if _, ok := validateSendMsgArgs(-1, 0, 0, 0, 0); ok {
		t.Fatal("expected negative controller_id to be rejected")
	}
}

func TestValidateSendMsgArgsRejectsOversizeLength(t *testing.T) {
	if _, ok := validateSendMsgArgs(0, 0, 0, 0, int32(types.MaxDataLen)+1); ok {
		t.Fatal("expected data_len > 223 to be rejected")
	}
	if _, ok := validateSendMsgArgs(0, 0, 0, 0, -1); ok {
		t.Fatal("expected negative data_len to be rejected")
	}
}

func TestValidateSendMsgArgsAcceptsBoundary(t *testing.T) {
	msg, ok := validateSendMsgArgs(2, 7, 130306, 5, int32(types.MaxDataLen))
	if !ok {
		t.Fatal("expected boundary values to validate")
	}
	if msg.ControllerID != types.Controller2 || msg.Length != types.MaxDataLen {
		t.Fatalf("unexpected parsed message: %+v", msg)
	}
}

func TestQueueTxSinkRoutesToCorrectController(t *testing.T) {
	sink := &QueueTxSink{}
	for i := range sink.Queues {
		sink.Queues[i] = queue.New(4)
	}

	ok := sink.PushBack(types.Controller1, types.NMEAMessage{PGN: 42}, 0)
	if !ok {
		t.Fatal("expected PushBack to succeed")
	}
	if _, res := sink.Queues[types.Controller0].PopFront(0); res != queue.TimedOut {
		t.Fatal("expected controller 0's queue to be untouched")
	}
	msg, res := sink.Queues[types.Controller1].PopFront(0)
	if res != queue.Got || msg.PGN != 42 {
		t.Fatalf("expected controller 1's queue to receive the message, got res=%v msg=%+v", res, msg)
	}
}

func TestResolveSendPushTimeoutFallsBackToDefault(t *testing.T) {
	if got := resolveSendPushTimeout(0); got != defaultSendPushTimeout {
		t.Fatalf("resolveSendPushTimeout(0) = %v, want default %v", got, defaultSendPushTimeout)
	}
	if got := resolveSendPushTimeout(25 * time.Millisecond); got != 25*time.Millisecond {
		t.Fatalf("resolveSendPushTimeout(25ms) = %v, want 25ms", got)
	}
}

func TestQueueTxSinkRejectsInvalidController(t *testing.T) {
	sink := &QueueTxSink{}
	for i := range sink.Queues {
		sink.Queues[i] = queue.New(1)
	}
	if sink.PushBack(types.ControllerID(99), types.NMEAMessage{}, time.Millisecond) {
		t.Fatal("expected an invalid controller id to be rejected")
	}
}
