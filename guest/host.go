// Package guest embeds the sandboxed WebAssembly guest program (§4.7): it
// instantiates the runtime with an externally supplied allocator, links the
// two shared linear-memory buffers, exposes the three host imports, and
// pumps one message per activation.
package guest

import (
	"context"
	"sync/atomic"
	"time"

	"tconnector-go/errcode"
	"tconnector-go/queue"
	"tconnector-go/types"
	"tconnector-go/x/conv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ModeBufSize is the size of the shared mode_buf region (§6.3): one ASCII
// digit, '0'..'3'.
const ModeBufSize = 1

// guestStackSize and guestHeapSize bound the arena the externally supplied
// allocator carves the guest's two linked buffers out of (§4.7). Actual
// stack/heap partitioning is the allocator's concern, not this package's;
// it is treated as an external collaborator per the scope notes in §1.
const (
	guestStackSize = 32 * 1024
	guestHeapSize  = 32 * 1024
)

// TxSink is how SendMsg reaches the tx fabric: one bounded queue per
// controller.
type TxSink interface {
	// PushBack enqueues msg for controller id, returning true on success.
	PushBack(id types.ControllerID, msg types.NMEAMessage, timeout time.Duration) bool
}

// defaultSendPushTimeout bounds how long SendMsg may block the guest worker
// on a full tx queue (§5: "may block up to 10 ms on a full tx queue, but
// never longer"). Config.SendPushTimeout overrides it.
const defaultSendPushTimeout = 10 * time.Millisecond

// resolveSendPushTimeout applies cfg's override if positive, else the
// default.
func resolveSendPushTimeout(cfg time.Duration) time.Duration {
	if cfg > 0 {
		return cfg
	}
	return defaultSendPushTimeout
}

// Stats are the guest host's own counters, read by the observability
// worker.
type Stats struct {
	Activations      uint64
	Traps            uint64
	SendAccepted     uint64
	SendRejected     uint64
	LastActivationNs int64
}

// Host owns the wazero runtime, the compiled+instantiated guest module, and
// the two shared buffers linked into its linear memory.
type Host struct {
	runtime wazero.Runtime
	module  api.Module
	sink    TxSink
	modeFn  func() types.Mode
	printer func(string)

	sendPushTimeout time.Duration

	msgBufPtr  uint32
	modeBufPtr uint32
	mainFn     api.Function

	activations  atomic.Uint64
	traps        atomic.Uint64
	sendOK       atomic.Uint64
	sendRejected atomic.Uint64
	lastDurNs    atomic.Int64
}

// Config carries everything Host needs to instantiate the guest.
type Config struct {
	// Wasm is the embedded guest module bytes.
	Wasm []byte
	// Sink routes SendMsg calls into the tx fabric.
	Sink TxSink
	// ModeFn reads the current mode for the per-activation mode_buf write.
	ModeFn func() types.Mode
	// Printer receives PrintStr/PrintInt32 debug trace lines. If nil,
	// trace output is discarded.
	Printer func(string)
	// SendPushTimeout overrides defaultSendPushTimeout if positive.
	SendPushTimeout time.Duration
}

// New compiles and instantiates the guest module, wiring the env imports
// and linking msg_buf/mode_buf via the guest's own exports.
func New(ctx context.Context, cfg Config) (*Host, error) {
	h := &Host{sink: cfg.Sink, modeFn: cfg.ModeFn, printer: cfg.Printer}
	if h.printer == nil {
		h.printer = func(string) {}
	}
	h.sendPushTimeout = resolveSendPushTimeout(cfg.SendPushTimeout)

	rtCfg := wazero.NewRuntimeConfig().WithMemoryLimitPages((guestStackSize + guestHeapSize) / 65536)
	h.runtime = wazero.NewRuntimeWithConfig(ctx, rtCfg)

	envBuilder := h.runtime.NewHostModuleBuilder("env")
	envBuilder.NewFunctionBuilder().WithFunc(h.hostPrintStr).Export("PrintStr")
	envBuilder.NewFunctionBuilder().WithFunc(h.hostPrintInt32).Export("PrintInt32")
	envBuilder.NewFunctionBuilder().WithFunc(h.hostSendMsg).Export("SendMsg")
	if _, err := envBuilder.Instantiate(ctx); err != nil {
		h.runtime.Close(ctx)
		return nil, err
	}

	compiled, err := h.runtime.CompileModule(ctx, cfg.Wasm)
	if err != nil {
		h.runtime.Close(ctx)
		return nil, err
	}

	module, err := h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		h.runtime.Close(ctx)
		return nil, err
	}
	h.module = module

	if err := h.link(ctx); err != nil {
		h.runtime.Close(ctx)
		return nil, err
	}
	return h, nil
}

// link calls the guest's link_msg_buffer / link_mode_buffer exports with
// fixed regions of its own linear memory (§4.7, §6.3). There is no guest
// allocator involved: the host itself is the "externally supplied
// allocator" §1 refers to, so it simply carves a static arena out of guest
// memory at fixed, non-overlapping offsets and grows the memory to fit if
// the module's initial pages fall short.
func (h *Host) link(ctx context.Context) error {
	linkMsg := h.module.ExportedFunction("link_msg_buffer")
	linkMode := h.module.ExportedFunction("link_mode_buffer")
	main := h.module.ExportedFunction("main")
	if linkMsg == nil || linkMode == nil || main == nil {
		return errMissingExport
	}

	const arenaBase = 0
	h.msgBufPtr = arenaBase
	h.modeBufPtr = arenaBase + MsgBufSize

	needed := h.modeBufPtr + ModeBufSize
	mem := h.module.Memory()
	if have := mem.Size(); have < needed {
		if _, ok := mem.Grow((needed - have + 65535) / 65536); !ok {
			return errArenaTooSmall
		}
	}

	if _, err := linkMsg.Call(ctx, uint64(h.msgBufPtr), uint64(MsgBufSize)); err != nil {
		return err
	}
	if _, err := linkMode.Call(ctx, uint64(h.modeBufPtr), uint64(ModeBufSize)); err != nil {
		return err
	}
	h.mainFn = main
	return nil
}

// Close tears down the runtime, releasing the guest instance.
func (h *Host) Close(ctx context.Context) error { return h.runtime.Close(ctx) }

// Activate runs one steady-state iteration (§4.7): serialize msg into
// msg_buf, write the current mode into mode_buf, invoke main, and record
// the activation's wall-clock duration. A guest trap is logged and
// swallowed; the instance remains live for the next activation (§8 S6).
func (h *Host) Activate(ctx context.Context, msg types.NMEAMessage) {
	buf := EncodeMsgBuf(msg)
	if !h.module.Memory().Write(h.msgBufPtr, buf) {
		h.printer("guest: failed to write msg_buf")
		return
	}
	modeByte := [1]byte{EncodeModeBuf(h.modeFn())}
	if !h.module.Memory().Write(h.modeBufPtr, modeByte[:]) {
		h.printer("guest: failed to write mode_buf")
		return
	}

	start := time.Now()
	_, err := h.mainFn.Call(ctx)
	h.lastDurNs.Store(int64(time.Since(start)))
	h.activations.Add(1)
	if err != nil {
		h.traps.Add(1)
		h.printer("guest: trap: " + err.Error())
	}
}

// Stats returns a point-in-time snapshot of this host's counters.
func (h *Host) Stats() Stats {
	return Stats{
		Activations:      h.activations.Load(),
		Traps:            h.traps.Load(),
		SendAccepted:     h.sendOK.Load(),
		SendRejected:     h.sendRejected.Load(),
		LastActivationNs: h.lastDurNs.Load(),
	}
}

// hostPrintStr implements the PrintStr import: debug trace of a byte span
// in guest memory.
func (h *Host) hostPrintStr(ctx context.Context, m api.Module, ptr, length uint32) {
	data, ok := m.Memory().Read(ptr, length)
	if !ok {
		return
	}
	h.printer(string(data))
}

// hostPrintInt32 implements the PrintInt32 import: debug trace of an
// integer, hex if hexFlag=1.
func (h *Host) hostPrintInt32(ctx context.Context, n, hexFlag int32) {
	var buf [11]byte
	if hexFlag == 1 {
		h.printer(string(conv.U32Hex(buf[:8], uint32(n))))
		return
	}
	h.printer(string(conv.Itoa(buf[:], int64(n))))
}

// hostSendMsg implements SendMsg, the guest's sole egress (§4.7, §6.2).
func (h *Host) hostSendMsg(ctx context.Context, m api.Module, controllerID, priority, pgn, source, dataPtr, dataLen int32) int32 {
	msg, ok := validateSendMsgArgs(controllerID, priority, pgn, source, dataLen)
	if !ok {
		h.sendRejected.Add(1)
		return 0
	}
	if msg.Length > 0 {
		data, ok := m.Memory().Read(uint32(dataPtr), uint32(dataLen))
		if !ok {
			h.sendRejected.Add(1)
			return 0
		}
		copy(msg.Data[:msg.Length], data)
	}

	if h.sink == nil || !h.sink.PushBack(msg.ControllerID, msg, h.sendPushTimeout) {
		h.sendRejected.Add(1)
		return 0
	}
	h.sendOK.Add(1)
	return 1
}

// validateSendMsgArgs applies the SendMsg validation rules from §4.7
// ("validates controller_id ∈ {0,1,2} and data_len ∈ [0,223]") independent
// of guest memory access, so the rule itself is unit-testable without a
// live wazero instance.
func validateSendMsgArgs(controllerID, priority, pgn, source, dataLen int32) (types.NMEAMessage, bool) {
	var msg types.NMEAMessage
	if controllerID < 0 || controllerID > 2 {
		return msg, false
	}
	if dataLen < 0 || dataLen > int32(types.MaxDataLen) {
		return msg, false
	}
	msg.ControllerID = types.ControllerID(controllerID)
	msg.Priority = uint8(priority)
	msg.PGN = uint32(pgn)
	msg.Source = uint8(source)
	msg.Length = int(dataLen)
	return msg, true
}

// errMissingExport and errArenaTooSmall are the two fatal-init failure modes
// §7 names for the guest host: both are local to this worker and leave
// rx/tx workers running.
var errMissingExport = &errcode.E{C: errcode.InvalidParams, Op: "guest.link", Msg: "module missing a required export"}
var errArenaTooSmall = &errcode.E{C: errcode.Error, Op: "guest.link", Msg: "failed to grow linear memory for shared buffers"}

// QueueTxSink adapts three per-controller queue.Queue values to TxSink.
type QueueTxSink struct {
	Queues [types.NumControllers]*queue.Queue
}

func (s *QueueTxSink) PushBack(id types.ControllerID, msg types.NMEAMessage, timeout time.Duration) bool {
	if !id.Valid() {
		return false
	}
	return s.Queues[id].PushBack(msg, timeout) == queue.Accepted
}
