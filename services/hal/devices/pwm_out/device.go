// Package pwm_out exposes one PWM-capable pin as a dimmable output with
// provider-paced ramps. Levels on the bus are logical 0..Top; active-low
// outputs are inverted at the compare register so logical 0 always means
// "off" regardless of wiring.
package pwm_out

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
	"sensorcode-go/x/mathx"
	"sensorcode-go/x/timex"
)

type Device struct {
	id        string
	pin       int
	pwm       core.PWMHandle
	pub       core.EventEmitter
	reg       core.ResourceRegistry
	freq      uint64
	top       uint16
	activeLow bool
	initial   uint16 // logical
	addr      core.CapAddr
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	slice, channel, _ := d.pwm.Info()
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindPWM,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "pwm_out",
			Detail: types.PWMInfo{
				Pin:       d.pin,
				Slice:     slice,
				Channel:   string(channel),
				FreqHz:    d.freq,
				Top:       d.top,
				ActiveLow: d.activeLow,
				Initial:   d.initial,
			},
		},
	}}
}

func (d *Device) Init(context.Context) error {
	if err := d.pwm.Configure(d.freq, d.top); err != nil {
		d.pub.Emit(core.Event{
			Addr: d.addr,
			TSms: timex.NowMs(),
			Err:  string(errcode.MapDriverErr(err)),
		})
		return nil // degraded, not fatal; the capability stays addressable
	}
	level := d.clamp(d.initial)
	d.pwm.Set(d.phys(level))
	d.emitLevel(level)
	return nil
}

func (d *Device) Close() error {
	if d.pwm != nil {
		d.pwm.StopRamp()
	}
	if d.reg != nil {
		d.reg.ReleasePin(d.id, d.pin)
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, ok := payload.(types.PWMSet)
		if !ok {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		level := d.clamp(p.Level)
		d.pwm.Set(d.phys(level))
		d.emitLevel(level)
		return core.EnqueueResult{OK: true}, nil

	case "ramp":
		p, ok := payload.(types.PWMRamp)
		if !ok {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		// The provider paces the ramp; values surface from its worker.
		if !d.pwm.Ramp(d.phys(p.To), p.DurationMs, p.Steps, core.PWMRampMode(p.Mode)) {
			return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
		}
		return core.EnqueueResult{OK: true}, nil

	case "stop_ramp":
		d.pwm.StopRamp()
		return core.EnqueueResult{OK: true}, nil

	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) clamp(level uint16) uint16 {
	return mathx.Clamp(level, 0, d.top)
}

// phys maps a logical level to the compare value loaded into the slice.
func (d *Device) phys(logical uint16) uint16 {
	l := d.clamp(logical)
	if d.activeLow {
		return d.top - l
	}
	return l
}

func (d *Device) emitLevel(logical uint16) {
	d.pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.PWMValue{Level: logical},
		TSms:    timex.NowMs(),
	})
}
