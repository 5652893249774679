package gpio_button

import (
	"context"
	"time"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
)

func init() { core.RegisterBuilder("gpio_button", builder{}) }

type Params struct {
	Pin        int
	Pull       string // "none", "up", "down"
	Invert     bool   // true when pressed pulls the line low
	DebounceMs uint16
	Domain     string
	Name       string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, ok := in.Params.(Params)
	if !ok || p.Pin < 0 || p.Domain == "" || p.Name == "" {
		return nil, errcode.InvalidParams
	}

	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOIn)
	if err != nil {
		return nil, err
	}
	gpio := ph.AsGPIO()
	_ = gpio.ConfigureInput(pullOf(p.Pull))

	return &Device{
		id:       in.ID,
		pin:      p.Pin,
		gpio:     gpio,
		invert:   p.Invert,
		pub:      in.Res.Pub,
		reg:      in.Res.Reg,
		addr:     core.CapAddr{Domain: p.Domain, Kind: types.KindButton, Name: p.Name},
		debounce: p.DebounceMs,
	}, nil
}

func pullOf(s string) core.Pull {
	switch s {
	case "up":
		return core.PullUp
	case "down":
		return core.PullDown
	}
	return core.PullNone
}

func debounceDuration(ms uint16) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
