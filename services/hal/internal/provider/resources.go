//go:build rp2040 || rp2350

package provider

import (
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/x/busywait"
)

// NewResources constructs the registry from the selected plan. The delay is
// a counted spin calibrated against the running core clock; settle delays
// are a few microseconds, far below a scheduler tick.
func NewResources() core.Resources {
	reg := NewResourceRegistry(SelectedPlan)
	return core.Resources{Reg: reg, Delay: busywait.ForCPU()}
}
