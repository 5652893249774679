// Package rp2_temp reads the RP2040 on-die temperature sensor. The sensor
// rides on the ADC mux, so the provider owns the conversion; this device
// only shapes the reading for the bus.
package rp2_temp

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
	"sensorcode-go/x/mathx"
)

func init() { core.RegisterBuilder("rp2_temp", builder{}) }

type Params struct {
	Domain string // required
	Name   string // required
}

type builder struct{}

// dieTempReader is the provider feature this device needs. Only the rp2
// registry implements it; elsewhere the build fails as unsupported.
type dieTempReader interface {
	ReadOnDieMilliC() int32
}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, ok := in.Params.(Params)
	if !ok || p.Domain == "" || p.Name == "" {
		return nil, errcode.InvalidParams
	}
	rdr, ok := in.Res.Reg.(dieTempReader)
	if !ok {
		return nil, errcode.Unsupported
	}
	return &Device{
		id:   in.ID,
		pub:  in.Res.Pub,
		addr: core.CapAddr{Domain: p.Domain, Kind: types.KindTemperature, Name: p.Name},
		read: rdr.ReadOnDieMilliC,
	}, nil
}

type Device struct {
	id   string
	pub  core.EventEmitter
	addr core.CapAddr
	read func() int32 // provider-injected milli-celsius reader
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindTemperature,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "rp2_temp",
			Detail:        types.TemperatureInfo{Sensor: "rp2040_internal"},
		},
	}}
}

func (d *Device) Init(context.Context) error { return nil }

func (d *Device) Close() error { return nil }

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	// Synchronous: the read is a single ADC conversion, cheap enough for the
	// control path.
	decic := d.read() / 100
	const tMin, tMax = -400, 1250 // -40.0 to +125.0 C plausibility window
	if !mathx.Between(decic, tMin, tMax) {
		d.pub.Emit(core.Event{Addr: d.addr, Err: "invalid_sample"})
		return core.EnqueueResult{OK: true}, nil
	}
	d.pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.TemperatureValue{DeciC: int16(decic)},
	})
	return core.EnqueueResult{OK: true}, nil
}
