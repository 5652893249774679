// Package pcf8574 provides a minimal TinyGo driver for the PCF8574 8-bit
// I2C port expander, used to host the multiplexer select and enable lines
// when the MCU is short on pins.
//
// Design notes (datasheet references):
// • No registers: a plain write sets the 8-bit port latch, a plain read
//   samples the pins.
// • Quasi-bidirectional outputs: a 1 releases the pin to a weak pull-up, a
//   0 sinks current. Both levels are firm enough for CMOS select inputs.
// • Max bus speed 100 kHz.

package pcf8574

import (
	"errors"

	"tinygo.org/x/drivers"
)

// ---------------- Top level vars ----------------

var ErrPinRange = errors.New("pcf8574: pin out of range")

// ---------------- Types and configuration ----------------

const (
	AddressDefault uint16 = 0x20

	// Pins is the port width.
	Pins = 8
)

type Config struct {
	Address uint16
}

type Device struct {
	bus   drivers.I2C
	addr  uint16
	state uint8 // written latch; power-on default is all ones

	w   [1]byte
	err error // first write error since the last Err call
}

func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{bus: bus, addr: addr, state: 0xFF}
}

// Configure pushes the current latch state onto the port, releasing every
// pin high (the chip's power-on state). It doubles as a connectivity probe.
func (d *Device) Configure() error {
	return d.send()
}

// ---------------- Port access ----------------

// SetPin drives a single pin: true releases it high, false sinks it low.
func (d *Device) SetPin(pin uint8, high bool) error {
	if pin >= Pins {
		return ErrPinRange
	}
	if high {
		d.state |= 1 << pin
	} else {
		d.state &^= 1 << pin
	}
	return d.send()
}

// WriteMask updates the pins selected by mask to the corresponding bits in
// levels with a single bus write.
func (d *Device) WriteMask(mask, levels uint8) error {
	d.state = (d.state &^ mask) | (levels & mask)
	return d.send()
}

// State returns the written latch state (not the sampled pin levels).
func (d *Device) State() uint8 { return d.state }

// ReadPins samples all eight pins. Pins being used as inputs must have been
// released high first.
func (d *Device) ReadPins() (uint8, error) {
	var r [1]byte
	err := d.bus.Tx(d.addr, nil, r[:])
	return r[0], err
}

func (d *Device) send() error {
	d.w[0] = d.state
	return d.bus.Tx(d.addr, d.w[:], nil)
}

// ---------------- Pin views ----------------

// PinView adapts one expander pin to a plain Set(bool) output line. Bus
// errors cannot surface through Set; the first one is held on the Device
// until collected with Err.
type PinView struct {
	d    *Device
	mask uint8
}

// Pin returns a view of pin as a digital output line. pin is masked to the
// port width.
func (d *Device) Pin(pin uint8) PinView {
	return PinView{d: d, mask: 1 << (pin % Pins)}
}

func (v PinView) Set(high bool) {
	var err error
	if high {
		err = v.d.WriteMask(v.mask, v.mask)
	} else {
		err = v.d.WriteMask(v.mask, 0)
	}
	if err != nil && v.d.err == nil {
		v.d.err = err
	}
}

// Err returns the first write error seen by any PinView since the previous
// call, then clears it.
func (d *Device) Err() error {
	err := d.err
	d.err = nil
	return err
}
