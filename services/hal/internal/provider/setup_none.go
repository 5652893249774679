//go:build !((pico && (pico_ir_proto_1 || pico_ir_i2c_1)) || (linux && ir_hat_1))

package provider

import "sensorcode-go/services/hal/internal/provider/setups"

// No board tag selected: hosts and tests run with an empty plan, a zero
// InitialHALConfig, and device tables fed over the bus instead.
func init() {
	SelectedPlan = setups.ResourcePlan{}
	BoardName = "host"
}
