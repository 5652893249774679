// Package ads1115 provides a minimal TinyGo driver for the TI ADS1115
// 16-bit delta-sigma ADC, used on sensor boards whose host MCU or SBC has
// no free (or no) analog inputs.
//
// Design notes (datasheet references):
// • I2C with big-endian 16-bit registers; conversion at 0x00, config at 0x01.
// • OS bit (0x8000): writing 1 starts a single-shot conversion; it reads
//   back 0 while the conversion is still running.
// • Single-ended inputs AINx→GND are MUX codes 0b100..0b111 (bits 14:12).
// • In single-shot mode the device powers itself down after each
//   conversion, so there is no explicit stop.

package ads1115

import (
	"errors"

	"tinygo.org/x/drivers"
)

// ---------------- Top level vars ----------------

var ErrInvalidInput = errors.New("ads1115: input out of range")

// ---------------- Registers and fields ----------------

const (
	// 7-bit addresses by ADDR pin strap.
	AddressGround uint16 = 0x48
	AddressVDD    uint16 = 0x49
	AddressSDA    uint16 = 0x4A
	AddressSCL    uint16 = 0x4B

	AddressDefault = AddressGround

	regConversion = 0x00
	regConfig     = 0x01

	// Inputs is the number of single-ended inputs.
	Inputs = 4

	cfgOS          uint16 = 0x8000
	cfgMuxSingle0  uint16 = 0x4000 // +0x1000 per input
	cfgMuxStep     uint16 = 0x1000
	cfgModeSingle  uint16 = 0x0100
	cfgCompDisable uint16 = 0x0003

	// configDefault is the power-on register value (AIN0/AIN1, ±2.048 V,
	// single-shot, 128 SPS, comparator off).
	configDefault uint16 = 0x8583
)

// Gain selects the PGA full-scale range (config bits 11:9).
type Gain uint16

const (
	Gain6144mV Gain = 0x0000
	Gain4096mV Gain = 0x0200
	Gain2048mV Gain = 0x0400 // default
	Gain1024mV Gain = 0x0600
	Gain512mV  Gain = 0x0800
	Gain256mV  Gain = 0x0A00
)

// DataRate selects samples per second (config bits 7:5).
type DataRate uint16

const (
	Rate8SPS   DataRate = 0x0000
	Rate16SPS  DataRate = 0x0020
	Rate32SPS  DataRate = 0x0040
	Rate64SPS  DataRate = 0x0060
	Rate128SPS DataRate = 0x0080 // default
	Rate250SPS DataRate = 0x00A0
	Rate475SPS DataRate = 0x00C0
	Rate860SPS DataRate = 0x00E0
)

// ---------------- Types and configuration ----------------

type Config struct {
	Address uint16
	Gain    Gain
	Rate    DataRate
}

type Device struct {
	bus  drivers.I2C
	addr uint16
	gain Gain
	rate DataRate

	// Fixed buffers to avoid per-call heap allocations.
	w [3]byte
	r [2]byte
}

func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	gain := cfg.Gain
	if gain == 0 {
		gain = Gain2048mV
	}
	rate := cfg.Rate
	if rate == 0 {
		rate = Rate128SPS
	}
	return &Device{bus: bus, addr: addr, gain: gain, rate: rate}
}

// Configure resets the config register to its power-on default. It doubles
// as a connectivity probe.
func (d *Device) Configure() error {
	return d.writeRegister(regConfig, configDefault)
}

// Connected reports whether the device answers on the bus.
func (d *Device) Connected() bool {
	_, err := d.readRegister(regConfig)
	return err == nil
}

// ---------------- Conversion sequencing ----------------

// StartSingle begins one single-shot conversion of input (0..3, single-ended
// against ground) with the configured gain and data rate.
func (d *Device) StartSingle(input uint8) error {
	if input >= Inputs {
		return ErrInvalidInput
	}
	word := cfgOS |
		(cfgMuxSingle0 + cfgMuxStep*uint16(input)) |
		uint16(d.gain) |
		cfgModeSingle |
		uint16(d.rate) |
		cfgCompDisable
	return d.writeRegister(regConfig, word)
}

// Busy reports whether a conversion is still running (OS bit reads 0).
func (d *Device) Busy() (bool, error) {
	word, err := d.readRegister(regConfig)
	if err != nil {
		return false, err
	}
	return word&cfgOS == 0, nil
}

// RawConversion returns the last conversion as a two's-complement count.
// Single-ended readings sit in 0..32767; small negative counts can appear
// when the input floats near ground.
func (d *Device) RawConversion() (int16, error) {
	word, err := d.readRegister(regConversion)
	if err != nil {
		return 0, err
	}
	return int16(word), nil
}

// ---------------- Low-level register access (MSB first) ----------------

func (d *Device) readRegister(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeRegister(reg byte, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val >> 8)
	d.w[2] = byte(val)
	return d.bus.Tx(d.addr, d.w[:3], nil)
}
