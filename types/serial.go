package types

// Parity names the UART parity modes the set_format verb accepts.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

func (p Parity) MarshalJSON() ([]byte, error) { return []byte(`"` + p.String() + `"`), nil }

// SerialSessionOpen requests ring buffers for a byte session. Sizes must be
// powers of two; zero picks the device default.
type SerialSessionOpen struct {
	RXSize int `json:"rx_size,omitempty"`
	TXSize int `json:"tx_size,omitempty"`
}

// SerialSessionClose tears the active session down.
type SerialSessionClose struct{}

// SerialSetBaud reconfigures the line rate.
type SerialSetBaud struct {
	Baud uint32 `json:"baud"`
}

// SerialSetFormat reconfigures framing.
type SerialSetFormat struct {
	DataBits uint8  `json:"data_bits"`
	StopBits uint8  `json:"stop_bits"`
	Parity   Parity `json:"parity"`
}

// SerialSessionOpened announces the ring handles of a fresh session.
type SerialSessionOpened struct {
	SessionID uint32 `json:"session_id"`
	RXHandle  uint32 `json:"rx_handle"`
	TXHandle  uint32 `json:"tx_handle"`
}

// SerialInfo describes the claimed UART behind the capability.
type SerialInfo struct {
	Bus  string `json:"bus"`
	Baud uint32 `json:"baud"` // 0 when the config left the rate alone
}
