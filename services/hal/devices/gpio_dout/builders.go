package gpio_dout

import (
	"context"

	"sensorcode-go/errcode"
	"sensorcode-go/services/hal/internal/core"
)

func init() {
	core.RegisterBuilder("gpio_led", roleBuilder{RoleLED})
	core.RegisterBuilder("gpio_switch", roleBuilder{RoleSwitch})
}

type roleBuilder struct{ role Role }

func (b roleBuilder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := params(in.Params)
	if err != nil {
		return nil, err
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOOut)
	if err != nil {
		return nil, err
	}
	return New(b.role, in.ID, p, ph.AsGPIO(), in.Res.Pub), nil
}

func params(v any) (Params, error) {
	switch p := v.(type) {
	case Params:
		return p, nil
	case *Params:
		return *p, nil
	}
	return Params{}, errcode.InvalidParams
}
