package types

// HALState is the retained lifecycle record under hal/state.
type HALState struct {
	Level  string `json:"level"`  // "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}

// Link grades a capability's availability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

// CapabilityStatus is retained under each capability's status topic.
type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // machine-readable short code
}

// Info is the retained envelope under each capability's info topic. Detail
// carries the kind-specific info struct.
type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"`
}

// PollStart asks the HAL to fire a verb on a schedule.
type PollStart struct {
	Verb       string `json:"verb"`
	IntervalMs uint32 `json:"interval_ms"` // must be > 0
	JitterMs   uint16 `json:"jitter_ms"`   // uniform [0..JitterMs] added per fire
}

// PollStop cancels a schedule. An empty verb means "read".
type PollStop struct {
	Verb string `json:"verb,omitempty"`
}

// PollSpec is the declarative poller form used in HALConfig.
type PollSpec struct {
	Domain     string `json:"domain"`
	Kind       Kind   `json:"kind"`
	Name       string `json:"name"`
	Verb       string `json:"verb"` // typically "read" or "sweep"
	IntervalMs uint32 `json:"interval_ms"`
	JitterMs   uint16 `json:"jitter_ms"`
}

// HALConfig is the device table published retained under config/hal.
type HALConfig struct {
	Devices []HALDevice `json:"devices"`
	Pollers []PollSpec  `json:"pollers,omitempty"`
}

// HALDevice names one device instance and its builder parameters.
type HALDevice struct {
	ID     string `json:"id"`
	Type   string `json:"type"` // builder registration name, e.g. "mux_array"
	Params any    `json:"params"`
}

// OKReply acknowledges a control request.
type OKReply struct {
	OK bool `json:"ok"`
}

// ErrorReply rejects a control request with a machine-readable code.
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
