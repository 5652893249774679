// Package mux_array exposes a CD4067-multiplexed bank of analog sensors as
// one array capability. A sweep walks every populated channel and publishes
// the readings as the retained capability value; single-channel reads go
// out as tagged events.
package mux_array

import (
	"context"

	"sensorcode-go/drivers/cd4067"
	"sensorcode-go/drivers/pcf8574"
	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
	"sensorcode-go/x/timex"
)

type Device struct {
	id  string
	a   core.CapAddr
	res core.Resources

	mux *cd4067.Device
	exp *pcf8574.Device // non-nil when the select lines sit on an expander

	channels uint8
	seq      uint32
	samples  [cd4067.Channels]uint16

	info types.ArrayInfo

	// Claimed resources, released on Close.
	pins   []int
	busIDs []core.ResourceID
	adcID  core.ResourceID
}

// finish wires the validated configuration into the device. The mux is
// constructed here but only driven from Init.
func (d *Device) finish(p Params, cfg cd4067.Config) {
	name := p.Name
	if name == "" {
		name = d.id
	}
	domain := p.Domain
	if domain == "" {
		domain = "sensor"
	}
	d.a = core.CapAddr{Domain: domain, Kind: types.KindArray, Name: name}
	d.channels = p.Channels
	d.mux = cd4067.New(cfg)

	settle := p.SettleUS
	if settle == 0 {
		settle = cd4067.DefaultSettleUS
	}
	d.info = types.ArrayInfo{
		Channels: p.Channels,
		ADC:      p.ADC,
		Expander: p.Expander,
		SettleUS: settle,
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   types.KindArray,
		Name:   d.a.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "mux_array",
			Detail:        d.info,
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.mux.Configure(); err != nil {
		return errcode.MapDriverErr(err)
	}
	if err := d.latchErr(nil); err != nil {
		return errcode.MapDriverErr(err)
	}
	d.mux.Enable()
	if err := d.latchErr(nil); err != nil {
		return errcode.MapDriverErr(err)
	}
	return nil
}

func (d *Device) Close() error {
	if d.mux != nil {
		d.mux.Disable()
	}
	if d.res.Reg == nil {
		return nil
	}
	d.releaseAll()
	return nil
}

func (d *Device) releaseAll() {
	for _, n := range d.pins {
		d.res.Reg.ReleasePin(d.id, n)
	}
	for _, b := range d.busIDs {
		d.res.Reg.ReleaseI2C(d.id, b)
	}
	if d.adcID != "" {
		d.res.Reg.ReleaseADC(d.id, d.adcID)
	}
	d.pins = nil
	d.busIDs = nil
	d.adcID = ""
}

// ---- Controls ----

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		req, code := core.As[types.ArrayRead](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if req.Channel >= d.channels {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
		}
		raw, err := d.mux.ReadChannel(req.Channel)
		if err = d.latchErr(err); err != nil {
			return d.fail(err), nil
		}
		ts := timex.NowMs()
		d.res.Pub.Emit(core.Event{
			Addr:     d.a,
			Payload:  types.ChannelSample{Channel: req.Channel, Raw: raw, TSms: ts},
			TSms:     ts,
			IsEvent:  true,
			EventTag: "sample",
		})
		return core.EnqueueResult{OK: true}, nil

	case "sweep":
		buf := d.samples[:d.channels]
		err := d.mux.ReadAllChannels(buf)
		if err = d.latchErr(err); err != nil {
			return d.fail(err), nil
		}
		d.seq++
		out := make([]uint16, len(buf))
		copy(out, buf)
		ts := timex.NowMs()
		d.res.Pub.Emit(core.Event{
			Addr:    d.a,
			Payload: types.ArraySweep{Seq: d.seq, TSms: ts, Samples: out},
			TSms:    ts,
		})
		return core.EnqueueResult{OK: true}, nil

	case "select":
		req, code := core.As[types.ArraySelect](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if req.Channel >= d.channels {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
		}
		d.mux.SelectChannel(req.Channel)
		if err := d.latchErr(nil); err != nil {
			return d.fail(err), nil
		}
		return core.EnqueueResult{OK: true}, nil

	case "enable":
		d.mux.Enable()
		if err := d.latchErr(nil); err != nil {
			return d.fail(err), nil
		}
		return core.EnqueueResult{OK: true}, nil

	case "disable":
		d.mux.Disable()
		if err := d.latchErr(nil); err != nil {
			return d.fail(err), nil
		}
		return core.EnqueueResult{OK: true}, nil

	case "set_settle":
		req, code := core.As[types.ArraySettle](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		d.mux.SetSettlingTime(req.US)
		return core.EnqueueResult{OK: true}, nil

	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// fail reports a hardware fault on the status topic and maps it to a reply
// code.
func (d *Device) fail(err error) core.EnqueueResult {
	d.res.Pub.Emit(core.Event{Addr: d.a, Err: err.Error()})
	return core.EnqueueResult{OK: false, Error: mapMuxErr(err)}
}

// latchErr folds a latched expander write error into err. Expander pin
// writes cannot fail at the call site, so the first bus error since the
// previous collection stands in for the whole operation.
func (d *Device) latchErr(err error) error {
	if d.exp != nil {
		if lerr := d.exp.Err(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}

func mapMuxErr(err error) errcode.Code {
	switch err {
	case cd4067.ErrPollTimeout:
		return errcode.Timeout
	case cd4067.ErrBufferMissing, cd4067.ErrBufferSize:
		return errcode.InvalidParams
	}
	return errcode.MapDriverErr(err)
}
