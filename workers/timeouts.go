package workers

import "time"

// Timeouts bounds every wait an rx/tx worker performs (§4.3-§4.6). It is
// populated from config.Config.Timeouts by system.Bootstrap; a zero field
// keeps that wait's package default instead of being driven to zero.
type Timeouts struct {
	Arbiter time.Duration // SPI arbiter acquisition (§4.4)
	Push    time.Duration // rx_queue push_back / tx requeue push_back (§4.3)
	Pop     time.Duration // tx_queue pop_front (§4.6)
	Yield   time.Duration // rx worker's fairness yield between polls (§4.5)
}

const (
	defaultArbiterTimeout = 100 * time.Millisecond
	defaultRxPushTimeout  = 10 * time.Millisecond
	defaultTxPopTimeout   = 100 * time.Millisecond
	defaultYieldInterval  = 10 * time.Millisecond
)

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
