package pwm_out

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/types"
	"sensorcode-go/x/strx"
)

func init() { core.RegisterBuilder("pwm_out", builder{}) }

type Params struct {
	Pin       int
	FreqHz    uint64 // carrier frequency
	Top       uint16 // counter wrap; logical levels span 0..Top
	ActiveLow bool
	Initial   uint16 // initial logical level
	Domain    string
	Name      string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, ok := in.Params.(Params)
	if !ok || p.Pin < 0 {
		return nil, errcode.InvalidParams
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncPWM)
	if err != nil {
		return nil, err
	}
	return &Device{
		id:        in.ID,
		pin:       p.Pin,
		pwm:       ph.AsPWM(),
		pub:       in.Res.Pub,
		reg:       in.Res.Reg,
		freq:      p.FreqHz,
		top:       p.Top,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		addr: core.CapAddr{
			Domain: strx.Coalesce(p.Domain, "io"),
			Kind:   types.KindPWM,
			Name:   strx.Coalesce(p.Name, in.ID),
		},
	}, nil
}
