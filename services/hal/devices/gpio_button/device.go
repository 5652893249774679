// Package gpio_button turns a debounced input pin into a button capability:
// pressed/released tagged events plus a retained pressed state. Inverted
// wiring (pressed pulls the line low) is absorbed here.
package gpio_button

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
)

type Device struct {
	id     string
	pin    int
	gpio   core.GPIOHandle
	invert bool

	pub core.EventEmitter
	reg core.ResourceRegistry

	addr     core.CapAddr
	debounce uint16 // ms
	edges    core.GPIOEdgeStream
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindButton,
		Name:   d.addr.Name,
		Info:   types.Info{SchemaVersion: 1, Driver: "gpio_button", Detail: types.ButtonInfo{Pin: d.pin}},
	}}
}

func (d *Device) Init(context.Context) error {
	d.emitState(d.pressed(d.gpio.Get()))

	es, err := d.reg.SubscribeGPIOEdges(d.id, d.pin, core.EdgeBoth, debounceDuration(d.debounce), 8)
	if err != nil {
		// Degraded but alive: "read" still works without the edge stream.
		d.pub.Emit(core.Event{Addr: d.addr, Err: "edge_sub_failed"})
		return nil
	}
	d.edges = es
	go d.edgeLoop()
	return nil
}

func (d *Device) Close() error {
	if d.edges != nil {
		d.edges.Close()
		d.reg.UnsubscribeGPIOEdges(d.id, d.pin)
	}
	d.reg.ReleasePin(d.id, d.pin)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	d.emitState(d.pressed(d.gpio.Get()))
	return core.EnqueueResult{OK: true}, nil
}

// edgeLoop runs until the edge stream closes. Every debounced edge becomes
// a tagged event and a value refresh.
func (d *Device) edgeLoop() {
	for ev := range d.edges.Events() {
		pressed := d.pressed(ev.Level)
		tag := "released"
		if pressed {
			tag = "pressed"
		}
		d.pub.Emit(core.Event{Addr: d.addr, EventTag: tag})
		d.emitState(pressed)
	}
}

func (d *Device) emitState(pressed bool) {
	d.pub.Emit(core.Event{Addr: d.addr, Payload: types.ButtonValue{Pressed: pressed}})
}

// pressed maps the pin level to the logical state, honouring inverted wiring.
func (d *Device) pressed(level bool) bool { return level != d.invert }
