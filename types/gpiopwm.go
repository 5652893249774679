package types

// ---- Button ----

type ButtonInfo struct {
	Pin int `json:"pin"`
}

type ButtonValue struct {
	Pressed bool `json:"pressed"`
}

// ---- LED and switch ----
//
// Both are boolean outputs; brightness belongs to PWM. The pairs stay
// separate so consumers can filter by kind without reading params.

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	On bool `json:"on"`
}

type LEDSet struct {
	On bool `json:"on"`
}

type SwitchInfo struct {
	Pin int `json:"pin"`
}

type SwitchValue struct {
	On bool `json:"on"`
}

type SwitchSet struct {
	On bool `json:"on"`
}

// ---- PWM ----

type PWMInfo struct {
	Pin       int    `json:"pin"`
	Slice     int    `json:"slice,omitempty"`   // filled by the provider
	Channel   string `json:"channel,omitempty"` // "A" or "B"
	FreqHz    uint64 `json:"freq_hz,omitempty"`
	Top       uint16 `json:"top,omitempty"`
	ActiveLow bool   `json:"active_low"`
	Initial   uint16 `json:"initial"`
}

// PWMValue reports the logical level in [0..Top].
type PWMValue struct {
	Level uint16 `json:"level"`
}

type PWMSet struct {
	Level uint16 `json:"level"` // logical, clamped to Top
}

// PWMRampMode selects the ramp curve. Linear is the only mode so far.
type PWMRampMode uint8

const (
	PWMRampLinear PWMRampMode = iota
)

// PWMRamp walks the level to a target over a duration.
type PWMRamp struct {
	To         uint16      `json:"to"` // logical, clamped to Top
	DurationMs uint32      `json:"duration_ms"`
	Steps      uint16      `json:"steps"` // 0 snaps straight to the target
	Mode       PWMRampMode `json:"mode"`
}
