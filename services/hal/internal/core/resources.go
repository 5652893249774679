package core

import (
	"time"

	"tinygo.org/x/drivers"
)

// ---- Bus taxonomy ----

type BusClass uint8

const (
	BusTransactional BusClass = iota // I²C, SPI, 1-Wire
	BusStream                        // UART, CAN, USB CDC
	BusSampled                       // ADC inputs
)

type ResourceID string // e.g. "i2c0", "uart0", "adc0"

// ---- Pin claims ----

type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
	FuncPWM
)

// PinHandle is the result of a successful pin claim. The As* accessors
// panic when the pin was claimed for a different function; that is a
// programming error, not a runtime condition.
type PinHandle interface {
	Pin() int
	AsGPIO() GPIOHandle
	AsPWM() PWMHandle
}

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

type PWMRampMode uint8

const (
	RampLinear PWMRampMode = iota
)

type PWMHandle interface {
	Configure(freqHz uint64, top uint16) error
	Set(level uint16)
	Enable(on bool)
	Info() (slice int, channel rune, pin int)
	Ramp(to uint16, durationMs uint32, steps uint16, mode PWMRampMode) bool
	StopRamp()
}

// ---- GPIO edge subscriptions ----

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

type EdgeEvent struct {
	Pin   int
	Level bool // pin level after the edge
	TSms  int64
}

type GPIOEdgeStream interface {
	Events() <-chan EdgeEvent
	Close()
}

// ---- ADC handles ----

// ADCHandle is the start/poll/read/stop conversion sequence of one analog
// input. Start arms a conversion, Ready reports completion, Read returns
// the raw sample at the converter's native resolution, Stop ends the
// sequence and must be safe to call after errors.
type ADCHandle interface {
	Start() error
	Ready() (bool, error)
	Read() (uint16, error)
	Stop() error
}

// ---- Serial ports ----

// SerialPort is a non-blocking byte port with edge wakeups. TryRead and
// TryWrite never block; Readable/Writable fire on the empty->non-empty
// (resp. full->non-full) transitions and may be nil when the port cannot
// signal that side.
type SerialPort interface {
	TryRead(p []byte) int
	TryWrite(p []byte) int
	Readable() <-chan struct{}
	Writable() <-chan struct{}
}

// Optional port capabilities, feature-detected by devices.

type SerialConfigurator interface {
	SetBaudRate(baud uint32) error
}

type SerialFormatConfigurator interface {
	SetFormat(databits, stopbits uint8, parity string) error
}

// ---- Device → HAL telemetry (single shape) ----
// An Event with empty Err and IsEvent false is a value update published
// retained to .../value. IsEvent (or a non-empty EventTag) publishes
// non-retained to .../event[/<tag>]. A non-empty Err publishes only
// .../status=degraded (retained).

type Event struct {
	Addr     CapAddr
	Payload  any    // typed payload (e.g. types.ArraySweep)
	TSms     int64  // ms timestamp; 0 => HAL stamps at publish
	Err      string // "timeout","io_error","unsupported",...
	IsEvent  bool   // true => publish to .../event (non-retained)
	EventTag string // optional event subtopic (e.g. "pressed","session_opened")
}

// ---- Event emission (devices → HAL) ----

type EventEmitter interface {
	// Emit tries to enqueue an Event for HAL publication.
	// It must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

// Delayer blocks the caller for at least the requested number of
// microseconds. Providers pick the implementation (busy-wait on MCU,
// sleep on hosted platforms).
type Delayer interface {
	DelayUS(us uint32)
}

type Resources struct {
	Reg   ResourceRegistry
	Pub   EventEmitter // provided by HAL; devices use it to emit values/events
	Delay Delayer
}

// ---- Unified registry interface ----

type ResourceRegistry interface {
	// Optional classification/introspection.
	ClassOf(id ResourceID) (BusClass, bool)

	// Transactional buses. Claims return a per-claim view that serialises
	// all hardware access behind a single worker per bus.
	ClaimI2C(devID string, id ResourceID) (drivers.I2C, error)
	ReleaseI2C(devID string, id ResourceID)

	// Serial ports (exclusive).
	ClaimSerial(devID string, id ResourceID) (SerialPort, error)
	ReleaseSerial(devID string, id ResourceID)

	// ADC inputs (exclusive).
	ClaimADC(devID string, id ResourceID) (ADCHandle, error)
	ReleaseADC(devID string, id ResourceID)

	// Pins (exclusive, function-typed).
	ClaimPin(devID string, n int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, n int)

	// Edge subscriptions ride on an existing FuncGPIOIn claim by the same
	// device.
	SubscribeGPIOEdges(devID string, pin int, edge Edge, debounce time.Duration, qlen int) (GPIOEdgeStream, error)
	UnsubscribeGPIOEdges(devID string, pin int)
}
