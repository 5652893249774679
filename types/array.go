package types

// ---- Multiplexed sensor array ----

// ArrayInfo describes the mux wiring behind an array capability.
type ArrayInfo struct {
	Channels uint8  `json:"channels"` // populated mux inputs (1..16)
	ADC      string `json:"adc"`      // "onboard:26", "ads1115:i2c0,0x48,0", ...
	Expander string `json:"expander,omitempty"`
	SettleUS uint32 `json:"settle_us"`
}

// ArraySweep is the retained value payload: one pass over all channels.
type ArraySweep struct {
	Seq     uint32   `json:"seq"`
	TSms    int64    `json:"ts_ms"`
	Samples []uint16 `json:"samples"` // index = channel
}

// ChannelSample is the event payload for a single-channel read.
type ChannelSample struct {
	Channel uint8  `json:"channel"`
	Raw     uint16 `json:"raw"`
	TSms    int64  `json:"ts_ms"`
}

// ---- Control payloads ----

// ArrayRead samples one channel now.
type ArrayRead struct {
	Channel uint8 `json:"channel"`
}

// ArraySelect routes a channel and leaves it routed, for bench probing.
type ArraySelect struct {
	Channel uint8 `json:"channel"`
}

// ArraySettle adjusts the post-switch settle delay.
type ArraySettle struct {
	US uint32 `json:"us"`
}
