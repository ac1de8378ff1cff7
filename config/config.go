// Package config carries the boot-time settings for the message-plane:
// queue capacities, timeout budgets, and the controller topology. Unlike
// the rest of the ambient stack this package intentionally uses the
// standard library's encoding/json rather than a third-party codec — see
// the grounding ledger for why.
package config

import (
	"encoding/json"

	"tconnector-go/errcode"
)

const serviceName = "config"

// Queues mirrors §4.3's four bounded queues.
type Queues struct {
	RxQueueCap int `json:"rx_queue_cap"`
	TxQueueCap int `json:"tx_queue_cap"`
}

// Timeouts mirrors the bounded waits named throughout §4.
type Timeouts struct {
	RxPushMs      int `json:"rx_push_ms"`
	TxPopMs       int `json:"tx_pop_ms"`
	ArbiterMs     int `json:"arbiter_ms"`
	YieldMs       int `json:"yield_ms"`
	SendMsgPushMs int `json:"send_msg_push_ms"`
}

// ControllerConfig names one controller's backend and, for Mcp, its
// peripheral identity (left opaque here; the bootstrap package resolves it
// to real SPI/CS/INT handles).
type ControllerConfig struct {
	Backend string `json:"backend"` // "twai" or "mcp2515"
	Device  string `json:"device,omitempty"`
}

// Config is the whole boot-time settings tree, as loaded from an embedded
// per-device JSON document (cf. the teacher's embeddedConfigs map).
type Config struct {
	Queues      Queues             `json:"queues"`
	Timeouts    Timeouts           `json:"timeouts"`
	Controllers []ControllerConfig `json:"controllers"`
	RxFrameBuf  int                `json:"rx_frame_buf"` // §9 open question: retained as a configurable constant, default 250
	WasmPath    string             `json:"wasm_path"`
}

// Default returns the built-in configuration: three controllers (one TWAI,
// two MCP2515), 100-deep queues, and the timeout budgets named in §4.3-4.6.
func Default() Config {
	return Config{
		Queues:   Queues{RxQueueCap: 100, TxQueueCap: 100},
		Timeouts: Timeouts{RxPushMs: 10, TxPopMs: 100, ArbiterMs: 100, YieldMs: 10, SendMsgPushMs: 10},
		Controllers: []ControllerConfig{
			{Backend: "twai"},
			{Backend: "mcp2515", Device: "mcp0"},
			{Backend: "mcp2515", Device: "mcp1"},
		},
		RxFrameBuf: 250,
		WasmPath:   "guest.wasm",
	}
}

// EmbeddedLookup allows overriding how a device's config is resolved;
// tests and the host demo binary replace it with a fixed map.
var EmbeddedLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Load resolves device's embedded JSON document, parsing it over a copy of
// Default() so any field the document omits keeps its default value.
func Load(device string) (Config, error) {
	cfg := Default()
	raw, ok := EmbeddedLookup(device)
	if !ok || len(raw) == 0 {
		if device == "" {
			return cfg, nil
		}
		return cfg, &errcode.E{C: errcode.InvalidParams, Op: serviceName + ".Load", Msg: "no embedded config for device: " + device}
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, &errcode.E{C: errcode.InvalidPayload, Op: serviceName + ".Load", Msg: "invalid config for device " + device, Err: err}
	}
	return cfg, nil
}
