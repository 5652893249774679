// Package serial_raw exposes a claimed UART as a byte-session capability.
// A session is a pair of shmring rings bridged to the port by a pump
// goroutine; clients receive the ring handles over the bus and then move
// bytes without any further HAL round trips. The bench console is the main
// consumer, on the aux link of the array boards.
package serial_raw

import (
	"context"
	"sync/atomic"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
)

// ---- Parameters ----

// Params configures one UART capability. Ring sizes are powers of two;
// zero defers to the session_open request or the 512-byte default.
type Params struct {
	Bus    string
	Domain string
	Name   string
	Baud   uint32
	RXSize int
	TXSize int
}

const defaultRingSize = 512

// ---- Builder ----

func Builder() core.Builder { return builder{} }

func init() { core.RegisterBuilder("serial_raw", Builder()) }

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, ok := in.Params.(Params)
	if !ok {
		return nil, errcode.InvalidParams
	}
	if p.Bus == "" || p.Domain == "" || p.Name == "" {
		return nil, errcode.InvalidParams
	}

	port, err := in.Res.Reg.ClaimSerial(in.ID, core.ResourceID(p.Bus))
	if err != nil {
		return nil, err
	}

	d := &Device{
		id:     in.ID,
		addr:   core.CapAddr{Domain: p.Domain, Kind: types.KindSerial, Name: p.Name},
		res:    in.Res,
		port:   port,
		params: p,
	}
	// Baud and format are optional port features.
	d.baud, _ = port.(core.SerialConfigurator)
	d.format, _ = port.(core.SerialFormatConfigurator)
	return d, nil
}

// ---- Device ----

type Device struct {
	id     string
	addr   core.CapAddr
	res    core.Resources
	params Params

	port   core.SerialPort
	baud   core.SerialConfigurator       // nil when the port has fixed baud
	format core.SerialFormatConfigurator // nil when the port has fixed format

	active *session
	nextID atomic.Uint32
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindSerial,
		Name:   d.addr.Name,
		Info: types.Info{
			Driver: "serial_raw",
			Detail: types.SerialInfo{Bus: d.params.Bus, Baud: d.params.Baud},
		},
	}}
}

func (d *Device) Init(context.Context) error {
	if d.baud != nil && d.params.Baud > 0 {
		_ = d.baud.SetBaudRate(d.params.Baud)
	}
	// Degraded until a session opens the link.
	d.res.Pub.Emit(core.Event{Addr: d.addr, Err: "initialising"})
	return nil
}

func (d *Device) Close() error {
	d.closeSession()
	if d.res.Reg != nil {
		d.res.Reg.ReleaseSerial(d.id, core.ResourceID(d.params.Bus))
	}
	return nil
}

// ---- Controls ----

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "session_open":
		return d.openSession(payload)

	case "session_close":
		_, _ = core.As[types.SerialSessionClose](payload) // carries no fields
		if d.active == nil {
			return core.EnqueueResult{OK: true}, nil
		}
		d.closeSession()
		d.res.Pub.Emit(core.Event{Addr: d.addr, EventTag: "session_closed"})
		d.res.Pub.Emit(core.Event{Addr: d.addr, Err: "session_closed"})
		return core.EnqueueResult{OK: true}, nil

	case "set_baud":
		if d.baud == nil {
			return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
		}
		req, code := core.As[types.SerialSetBaud](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		_ = d.baud.SetBaudRate(req.Baud)
		return core.EnqueueResult{OK: true}, nil

	case "set_format":
		if d.format == nil {
			return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
		}
		req, code := core.As[types.SerialSetFormat](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if req.DataBits == 0 || req.StopBits == 0 {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
		}
		if err := d.format.SetFormat(req.DataBits, req.StopBits, req.Parity.String()); err != nil {
			return core.EnqueueResult{OK: false, Error: errcode.MapDriverErr(err)}, nil
		}
		return core.EnqueueResult{OK: true}, nil

	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// openSession validates the requested ring geometry, spins up the pump and
// announces the handles. A session already being open is a conflict: the
// port has exactly one pump.
func (d *Device) openSession(payload any) (core.EnqueueResult, error) {
	req, code := core.As[types.SerialSessionOpen](payload) // zero value picks defaults
	if code != "" {
		return core.EnqueueResult{OK: false, Error: code}, nil
	}
	if d.active != nil {
		return core.EnqueueResult{OK: false, Error: errcode.Conflict}, nil
	}

	rxSize := req.RXSize
	if rxSize == 0 {
		rxSize = fallbackSize(d.params.RXSize)
	}
	txSize := req.TXSize
	if txSize == 0 {
		txSize = fallbackSize(d.params.TXSize)
	}
	if !pow2(rxSize) || !pow2(txSize) || rxSize < 2 || txSize < 2 {
		return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
	}

	// Discard bytes that arrived before the session existed, then pump.
	d.flushStale()
	s := d.startSession(rxSize, txSize)

	d.res.Pub.Emit(core.Event{
		Addr: d.addr,
		Payload: types.SerialSessionOpened{
			SessionID: s.id,
			RXHandle:  uint32(s.rxH),
			TXHandle:  uint32(s.txH),
		},
		EventTag: "session_opened",
	})
	d.res.Pub.Emit(core.Event{Addr: d.addr, EventTag: "link_up"})
	return core.EnqueueResult{OK: true}, nil
}

// ---- Helpers ----

func pow2(n int) bool { return n > 0 && n&(n-1) == 0 }

// fallbackSize returns a usable ring size from device params, or the default
// when the param is unset or not a power of two. Requested sizes get
// rejected instead; configured ones degrade silently.
func fallbackSize(v int) int {
	if v < 2 || !pow2(v) {
		return defaultRingSize
	}
	return v
}
