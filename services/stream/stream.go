// stream/stream.go
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/muxwire"
	"sensorcode-go/types"
	"sensorcode-go/x/timex"
)

// The stream service takes multiplexer sweeps off the bus and pushes them
// over a byte transport as muxwire frames. The link is one-way: frames flow
// outward, nothing is read back.

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start runs the stream service. It blocks until ctx is cancelled.
// It listens for config on topic {"config","stream"} and (re)configures the link.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"stream", "state"},
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the configuration expected on "config/stream", either as the
// typed struct or as a decoded JSON object.
type Config struct {
	Transport TransportConfig `json:"transport"`
}

type TransportConfig struct {
	// "uart" (provided here) or other names registered via RegisterTransport.
	Type string      `json:"type"`
	UART *UARTConfig `json:"uart,omitempty"`
}

// UARTConfig carries enough information for an injected dialler to open the
// port. Pin mapping and UART instance selection happen inside UARTDial.
type UARTConfig struct {
	ID   string `json:"id"` // e.g. "uart0"
	Baud uint32 `json:"baud"`
	TX   int    `json:"tx_pin"`
	RX   int    `json:"rx_pin"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc

	frames atomic.Uint32 // forwarded since the link came up; reported in state
	drops  atomic.Uint32 // sweeps skipped because they could not be framed
}

// run waits for config and supervises a single link instance at a time.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "stream"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and forwarding
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", err)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.frames.Store(0)
		s.drops.Store(0)
		s.publishState("up", "link_established", nil)
		err = s.forward(ctx, rwc)
		_ = rwc.Close()
		if err == nil {
			// Clean close: restart only on new config.
			return
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying", err)
		if !sleep(ctx, delay) {
			return
		}
	}
}

// forward owns the active link: it subscribes to every array's retained
// sweep value and writes each update as one frame. A write error ends the
// link; whatever transport sits underneath decides what that means.
func (s *Service) forward(ctx context.Context, w io.Writer) error {
	sub := s.conn.Subscribe(sweepWildcard())
	defer s.conn.Unsubscribe(sub)

	// One frame of scratch; Marshal appends into it without allocating.
	buf := make([]byte, 0, muxwire.FrameLen(muxwire.MaxSamples))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return errSubClosed
			}
			sw, ok := msg.Payload.(types.ArraySweep)
			if !ok {
				continue
			}
			frame, err := muxwire.Marshal(buf[:0], uint8(sw.Seq), sw.Samples)
			if err != nil {
				// Empty or oversized sweep; not a link problem.
				s.drops.Add(1)
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return err
			}
			if n := s.frames.Add(1); n%stateEvery == 0 {
				s.publishState("up", "forwarding", nil)
			}
		}
	}
}

// stateEvery spaces out periodic state refreshes while forwarding.
const stateEvery = 64

// hal/cap/+/array/+/value
func sweepWildcard() bus.Topic {
	return bus.T("hal", "cap", "+", string(types.KindArray), "+", "value")
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport is a pluggable link dialler/owner.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]transportFactory{}

	errNoDial           = errors.New("stream: UARTDial not injected")
	errUnknownTransport = errors.New("stream: unknown transport type")
	errSubClosed        = errors.New("stream: sweep subscription closed")
	errBadPayload       = errors.New("stream: unsupported config payload")
)

// RegisterTransport allows external packages to add transports (eg. "tcp",
// "pipe" in tests).
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "uart":
		return newUARTTransport(cfg)
	default:
		return nil, errUnknownTransport
	}
}

// UARTDial is injected by platform code (eg. in main). It must open and
// return an io.ReadWriteCloser over the configured UART.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

// uartTransport implements Transport via the injected dial function.
type uartTransport struct {
	cfg TransportConfig
}

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errors.New("stream: uart transport requires uart config")
	}
	return &uartTransport{cfg: cfg}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, *u.cfg.UART)
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

// decodeConfig accepts the typed struct (internal publishers) or a decoded
// JSON object (the config service path).
func decodeConfig(p any) (Config, error) {
	switch v := p.(type) {
	case Config:
		return v, nil
	case *Config:
		return *v, nil
	case map[string]any:
		return configFromMap(v)
	default:
		return Config{}, errBadPayload
	}
}

func configFromMap(m map[string]any) (Config, error) {
	var cfg Config
	tr, ok := m["transport"].(map[string]any)
	if !ok {
		return cfg, errBadPayload
	}
	cfg.Transport.Type, _ = tr["type"].(string)
	if u, ok := tr["uart"].(map[string]any); ok {
		uc := &UARTConfig{}
		uc.ID, _ = u["id"].(string)
		uc.Baud = uint32(numField(u, "baud"))
		uc.TX = int(numField(u, "tx_pin"))
		uc.RX = int(numField(u, "rx_pin"))
		cfg.Transport.UART = uc
	}
	return cfg, nil
}

// numField tolerates the numeric types JSON decoders produce.
func numField(m map[string]any, k string) float64 {
	switch n := m[k].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint32:
		return float64(n)
	}
	return 0
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"frames": s.frames.Load(),
		"ts_ms":  timex.NowMs(),
	}
	if d := s.drops.Load(); d > 0 {
		payload["drops"] = d
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
