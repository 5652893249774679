// Package cd4067 provides a driver for CD4067-style 16-channel analog
// multiplexers, time-sharing one ADC input across up to 16 sources.
//
// Design notes (datasheet references):
// • A 4-bit binary code on S0..S3 routes one of 16 switch inputs to the
//   common output; S0 is the least significant bit.
// • INH (enable) is active-low: high inhibits every switch, low connects
//   the selected input.
// • After a switch the analog path needs a settle delay before sampling
//   (switch R_on against source impedance and any filtering network).
// • Sampling is start/poll/read/stop sequencing on an injected analog
//   source, so the driver carries no ADC peripheral coupling.

package cd4067

import "errors"

// ---------------- Top level vars ----------------

var (
	ErrNoSelectPins  = errors.New("cd4067: select pins not set")
	ErrNoEnablePin   = errors.New("cd4067: enable pin not set")
	ErrNoSource      = errors.New("cd4067: analog source not set")
	ErrNoDelay       = errors.New("cd4067: delay not set")
	ErrBufferMissing = errors.New("cd4067: nil sample buffer")
	ErrBufferSize    = errors.New("cd4067: buffer exceeds channel count")
	ErrPollTimeout   = errors.New("cd4067: conversion poll limit reached")
)

// ---------------- Capability interfaces ----------------

// Pin is a digital output line. Set takes effect on the physical line within
// the call. machine.Pin satisfies Pin on TinyGo targets.
type Pin interface {
	Set(high bool)
}

// AnalogSource is the conversion contract of the ADC wired to the
// multiplexer's common output.
type AnalogSource interface {
	Start() error
	Ready() (bool, error)
	Read() (uint16, error)
	Stop() error
}

// Delayer blocks the caller for at least the requested number of
// microseconds without yielding.
type Delayer interface {
	DelayUS(us uint32)
}

// ---------------- Types and configuration ----------------

const (
	// Channels is the number of switch inputs on the package.
	Channels = 16

	// DefaultSettleUS is the post-switch settle delay Configure installs.
	DefaultSettleUS = 10
)

type Config struct {
	S0, S1, S2, S3 Pin
	Enable         Pin // active-low inhibit

	Source AnalogSource
	Delay  Delayer

	// SettleUS overrides the default settle delay when non-zero.
	SettleUS uint32

	// PollLimit bounds the number of Ready polls per conversion. Zero polls
	// without limit: a stalled conversion blocks the caller indefinitely,
	// matching the bounded-risk contract of the hardware sequence.
	PollLimit uint32
}

type Device struct {
	cfg      Config // copied at New; the caller's Config may be transient
	current  uint8
	enabled  bool
	settleUS uint32
}

func New(cfg Config) *Device { return &Device{cfg: cfg} }

// Configure validates the wiring, drives all five control lines to their
// inactive levels and resets the runtime state (channel 0, disabled, default
// settle delay). It must complete before any other call on the device;
// calling it again re-initialises.
func (d *Device) Configure() error {
	if d.cfg.S0 == nil || d.cfg.S1 == nil || d.cfg.S2 == nil || d.cfg.S3 == nil {
		return ErrNoSelectPins
	}
	if d.cfg.Enable == nil {
		return ErrNoEnablePin
	}
	if d.cfg.Source == nil {
		return ErrNoSource
	}
	if d.cfg.Delay == nil {
		return ErrNoDelay
	}

	d.cfg.S0.Set(false)
	d.cfg.S1.Set(false)
	d.cfg.S2.Set(false)
	d.cfg.S3.Set(false)
	d.cfg.Enable.Set(true) // inhibit

	d.current = 0
	d.enabled = false
	d.settleUS = DefaultSettleUS
	if d.cfg.SettleUS != 0 {
		d.settleUS = d.cfg.SettleUS
	}
	return nil
}

// ---------------- Control ----------------

// SetSettlingTime overrides the post-switch settle delay. The value is not
// validated; zero disables the delay entirely.
func (d *Device) SetSettlingTime(us uint32) { d.settleUS = us }

// SettlingTime returns the active settle delay in microseconds.
func (d *Device) SettlingTime() uint32 { return d.settleUS }

// Enable connects the selected input to the common output (EN low).
// Idempotent.
func (d *Device) Enable() {
	d.cfg.Enable.Set(false)
	d.enabled = true
}

// Disable inhibits all switches (EN high). Idempotent.
func (d *Device) Disable() {
	d.cfg.Enable.Set(true)
	d.enabled = false
}

// Enabled reports whether the enable line is at its active level. The flag
// never diverges from the line: both change only through Enable/Disable and
// Configure.
func (d *Device) Enabled() bool { return d.enabled }

// SelectChannel drives the 4-bit select code for ch and blocks for the
// settle delay. Values of 16 and above cannot be encoded on four lines and
// are ignored outright, leaving lines and state untouched; CurrentChannel
// lets callers detect the rejection. The delay is incurred on every accepted
// call, re-selecting the current channel included.
func (d *Device) SelectChannel(ch uint8) {
	if ch >= Channels {
		return
	}
	d.cfg.S0.Set(ch&0x01 != 0)
	d.cfg.S1.Set(ch&0x02 != 0)
	d.cfg.S2.Set(ch&0x04 != 0)
	d.cfg.S3.Set(ch&0x08 != 0)
	d.current = ch
	if d.settleUS > 0 {
		d.cfg.Delay.DelayUS(d.settleUS)
	}
}

// CurrentChannel returns the last accepted channel without touching the
// hardware.
func (d *Device) CurrentChannel() uint8 { return d.current }

// ---------------- Sampling ----------------

// ReadChannel selects ch and samples the common output, returning the raw
// conversion at the source's native resolution (12-bit on the RP2040's
// SAR ADC). A disabled device is enabled first and stays enabled afterwards.
// The conversion poll blocks until the source reports ready; with PollLimit
// set it gives up with ErrPollTimeout instead.
func (d *Device) ReadChannel(ch uint8) (uint16, error) {
	if !d.enabled {
		d.Enable()
	}
	d.SelectChannel(ch)

	if err := d.cfg.Source.Start(); err != nil {
		return 0, err
	}
	for polls := uint32(0); ; polls++ {
		ready, err := d.cfg.Source.Ready()
		if err != nil {
			d.cfg.Source.Stop()
			return 0, err
		}
		if ready {
			break
		}
		if d.cfg.PollLimit != 0 && polls+1 >= d.cfg.PollLimit {
			d.cfg.Source.Stop()
			return 0, ErrPollTimeout
		}
	}
	sample, err := d.cfg.Source.Read()
	if err != nil {
		d.cfg.Source.Stop()
		return 0, err
	}
	if err := d.cfg.Source.Stop(); err != nil {
		return 0, err
	}
	return sample, nil
}

// ReadAllChannels sweeps channels 0..len(buf)-1 in ascending order, one full
// select/settle/convert cycle per channel. len(buf) must not exceed the
// 16-channel package limit; a nil buffer is rejected before any hardware
// access. The sweep stops at the first conversion error, leaving earlier
// samples valid. An empty buffer is a no-op.
func (d *Device) ReadAllChannels(buf []uint16) error {
	if buf == nil {
		return ErrBufferMissing
	}
	if len(buf) > Channels {
		return ErrBufferSize
	}
	for i := range buf {
		s, err := d.ReadChannel(uint8(i))
		if err != nil {
			return err
		}
		buf[i] = s
	}
	return nil
}
