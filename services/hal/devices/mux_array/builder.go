package mux_array

import (
	"context"
	"strings"

	"sensorcode-go/drivers/ads1115"
	"sensorcode-go/drivers/cd4067"
	"sensorcode-go/drivers/pcf8574"
	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/x/strconvx"
)

// ---- Parameters ----

// Params describes one multiplexed sensor array. The select lines either
// sit on MCU pins (S0..S3, EN) or on a PCF8574 port expander (Expander
// set, pins ignored); the analog path is named by ADC.
//
// On an expander the lines map to port bits P0..P3 (select) and P4
// (enable).
type Params struct {
	// Direct select path: GPIO numbers. Used when Expander is empty.
	S0, S1, S2, S3 int
	EN             int

	// Expander select path: "pcf8574:<bus>,<addr>", e.g. "pcf8574:i2c0,0x20".
	Expander string

	// ADC names the analog source at the multiplexer common pin:
	//   "onboard:<id>"            on-board ADC input from the resource plan
	//   "ads1115:<bus>,<addr>,<input>"  external 16-bit converter
	ADC string

	Channels  uint8  // populated channels; default 14, max 16
	SettleUS  uint32 // post-switch settle delay; 0 keeps the driver default
	PollLimit uint32 // conversion poll bound; 0 polls without limit

	Domain string // default "sensor"
	Name   string // default device ID
}

// DefaultChannels is the populated channel count when Params leaves it
// zero. The standard carrier wires 14 of the 16 inputs.
const DefaultChannels = 14

// ---- Builder registration ----

func Builder() core.Builder { return builder{} }

func init() { core.RegisterBuilder("mux_array", Builder()) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := parseParams(in.Params)
	if err != nil {
		return nil, err
	}
	if p.ADC == "" {
		return nil, errcode.InvalidParams
	}
	if p.Channels == 0 {
		p.Channels = DefaultChannels
	}
	if p.Channels > cd4067.Channels {
		return nil, errcode.InvalidParams
	}
	if in.Res.Delay == nil {
		return nil, errcode.Unsupported
	}

	d := &Device{id: in.ID, res: in.Res}

	var cfg cd4067.Config
	cfg.SettleUS = p.SettleUS
	cfg.PollLimit = p.PollLimit
	cfg.Delay = in.Res.Delay

	if p.Expander != "" {
		if err := d.claimExpanderLines(p.Expander, &cfg); err != nil {
			d.releaseAll()
			return nil, err
		}
	} else {
		if err := d.claimDirectLines(p, &cfg); err != nil {
			d.releaseAll()
			return nil, err
		}
	}

	if err := d.claimSource(p.ADC, &cfg); err != nil {
		d.releaseAll()
		return nil, err
	}

	d.finish(p, cfg)
	return d, nil
}

func parseParams(v any) (Params, error) {
	switch p := v.(type) {
	case Params:
		return p, nil
	case *Params:
		return *p, nil
	default:
		return Params{}, errcode.InvalidParams
	}
}

// ---- Select line wiring ----

func (d *Device) claimDirectLines(p Params, cfg *cd4067.Config) error {
	sel := [4]int{p.S0, p.S1, p.S2, p.S3}
	var lines [4]core.GPIOHandle
	for i, n := range sel {
		ph, err := d.res.Reg.ClaimPin(d.id, n, core.FuncGPIOOut)
		if err != nil {
			return err
		}
		d.pins = append(d.pins, n)
		g := ph.AsGPIO()
		if err := g.ConfigureOutput(false); err != nil {
			return err
		}
		lines[i] = g
	}
	ph, err := d.res.Reg.ClaimPin(d.id, p.EN, core.FuncGPIOOut)
	if err != nil {
		return err
	}
	d.pins = append(d.pins, p.EN)
	en := ph.AsGPIO()
	// Inhibit high keeps every channel open until Init enables the device.
	if err := en.ConfigureOutput(true); err != nil {
		return err
	}

	cfg.S0, cfg.S1, cfg.S2, cfg.S3 = lines[0], lines[1], lines[2], lines[3]
	cfg.Enable = en
	return nil
}

func (d *Device) claimExpanderLines(spec string, cfg *cd4067.Config) error {
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok || kind != "pcf8574" {
		return errcode.InvalidParams
	}
	busID, addrStr, ok := strings.Cut(rest, ",")
	if !ok {
		return errcode.InvalidParams
	}
	addr, err := strconvx.ParseUint(addrStr, 0, 16)
	if err != nil {
		return errcode.InvalidParams
	}

	bus, err := d.res.Reg.ClaimI2C(d.id, core.ResourceID(busID))
	if err != nil {
		return err
	}
	d.busIDs = append(d.busIDs, core.ResourceID(busID))

	exp := pcf8574.New(bus, pcf8574.Config{Address: uint16(addr)})
	if err := exp.Configure(); err != nil {
		return errcode.MapDriverErr(err)
	}
	d.exp = exp

	cfg.S0 = exp.Pin(0)
	cfg.S1 = exp.Pin(1)
	cfg.S2 = exp.Pin(2)
	cfg.S3 = exp.Pin(3)
	cfg.Enable = exp.Pin(4)
	return nil
}

// ---- Analog source wiring ----

func (d *Device) claimSource(spec string, cfg *cd4067.Config) error {
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return errcode.InvalidParams
	}
	switch kind {
	case "onboard":
		h, err := d.res.Reg.ClaimADC(d.id, core.ResourceID(rest))
		if err != nil {
			return err
		}
		d.adcID = core.ResourceID(rest)
		cfg.Source = h
		return nil

	case "ads1115":
		busID, tail, ok := strings.Cut(rest, ",")
		if !ok {
			return errcode.InvalidParams
		}
		addrStr, inputStr, ok := strings.Cut(tail, ",")
		if !ok {
			return errcode.InvalidParams
		}
		addr, err := strconvx.ParseUint(addrStr, 0, 16)
		if err != nil {
			return errcode.InvalidParams
		}
		input, err := strconvx.ParseUint(inputStr, 10, 8)
		if err != nil || input >= ads1115.Inputs {
			return errcode.InvalidParams
		}

		bus, err := d.res.Reg.ClaimI2C(d.id, core.ResourceID(busID))
		if err != nil {
			return err
		}
		d.busIDs = append(d.busIDs, core.ResourceID(busID))

		adc := ads1115.New(bus, ads1115.Config{Address: uint16(addr)})
		if err := adc.Configure(); err != nil {
			return errcode.MapDriverErr(err)
		}
		cfg.Source = &ads1115Source{dev: adc, input: uint8(input)}
		return nil

	default:
		return errcode.InvalidParams
	}
}

// ads1115Source adapts the single-shot converter to the mux driver's
// start/poll/read sequence.
type ads1115Source struct {
	dev   *ads1115.Device
	input uint8
}

func (s *ads1115Source) Start() error { return s.dev.StartSingle(s.input) }

func (s *ads1115Source) Ready() (bool, error) {
	busy, err := s.dev.Busy()
	return !busy, err
}

func (s *ads1115Source) Read() (uint16, error) {
	v, err := s.dev.RawConversion()
	if err != nil {
		return 0, err
	}
	// Single-ended counts are non-negative; clamp the float-near-ground case.
	if v < 0 {
		v = 0
	}
	return uint16(v), nil
}

func (s *ads1115Source) Stop() error { return nil }
