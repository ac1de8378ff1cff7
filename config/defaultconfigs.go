package config

// Embedded configuration, populated at build time (or by hand during
// development). Key: device ID; value: raw JSON overriding Default().

const cfgTConnectorBoard = `{
  "queues": { "rx_queue_cap": 100, "tx_queue_cap": 100 },
  "timeouts": { "rx_push_ms": 10, "tx_pop_ms": 100, "arbiter_ms": 100, "yield_ms": 10, "send_msg_push_ms": 10 },
  "controllers": [
    { "backend": "twai" },
    { "backend": "mcp2515", "device": "mcp0" },
    { "backend": "mcp2515", "device": "mcp1" }
  ],
  "rx_frame_buf": 250,
  "wasm_path": "guest.wasm"
}`

var embeddedConfigs = map[string][]byte{
	"tconnector-board": []byte(cfgTConnectorBoard),
}
