// Package gpio_dout drives one output pin as either an LED or a power
// switch. The two builder registrations share this device; the roles differ
// only in capability kind, default domain and payload types. Active-low
// wiring is absorbed here: everything above the pin speaks logical on/off.
package gpio_dout

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
	"sensorcode-go/x/strx"
	"sensorcode-go/x/timex"
)

type Params struct {
	Pin       int
	ActiveLow bool
	Initial   bool
	Domain    string
	Name      string
}

type Role int

const (
	RoleLED Role = iota
	RoleSwitch
)

type Device struct {
	id        string
	role      Role
	pin       core.GPIOHandle
	activeLow bool
	initial   bool
	pub       core.EventEmitter
	addr      core.CapAddr
}

func New(role Role, id string, p Params, pin core.GPIOHandle, pub core.EventEmitter) *Device {
	domain := p.Domain
	if domain == "" {
		if role == RoleSwitch {
			domain = "power"
		} else {
			domain = "io"
		}
	}
	kind := types.KindLED
	if role == RoleSwitch {
		kind = types.KindSwitch
	}
	return &Device{
		id:        id,
		role:      role,
		pin:       pin,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		pub:       pub,
		addr:      core.CapAddr{Domain: domain, Kind: kind, Name: strx.Coalesce(p.Name, id)},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	info := types.Info{SchemaVersion: 1, Driver: "gpio_dout"}
	if d.role == RoleSwitch {
		info.Detail = types.SwitchInfo{Pin: d.pin.Number()}
	} else {
		info.Detail = types.LEDInfo{Pin: d.pin.Number()}
	}
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   d.addr.Kind,
		Name:   d.addr.Name,
		Info:   info,
	}}
}

func (d *Device) Init(context.Context) error {
	if err := d.pin.ConfigureOutput(d.level(d.initial)); err != nil {
		return err
	}
	d.emitValue()
	return nil
}

func (d *Device) Close() error { return nil }

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		on, code := d.wantOn(payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		d.pin.Set(d.level(on))
	case "toggle":
		d.pin.Set(d.level(!d.logical()))
	case "read":
		// Just re-emit the current state.
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	d.emitValue()
	return core.EnqueueResult{OK: true}, nil
}

// wantOn decodes the role-specific set payload down to the target state.
func (d *Device) wantOn(payload any) (bool, errcode.Code) {
	if d.role == RoleSwitch {
		p, ok := payload.(types.SwitchSet)
		if !ok {
			return false, errcode.InvalidPayload
		}
		return p.On, ""
	}
	p, ok := payload.(types.LEDSet)
	if !ok {
		return false, errcode.InvalidPayload
	}
	return p.On, ""
}

// level maps logical on/off to the pin level, honouring active-low wiring.
func (d *Device) level(on bool) bool { return on != d.activeLow }

func (d *Device) logical() bool { return d.pin.Get() != d.activeLow }

func (d *Device) emitValue() {
	ev := core.Event{Addr: d.addr, TSms: timex.NowMs()}
	if d.role == RoleSwitch {
		ev.Payload = types.SwitchValue{On: d.logical()}
	} else {
		ev.Payload = types.LEDValue{On: d.logical()}
	}
	d.pub.Emit(ev)
}
