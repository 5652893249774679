//go:build (pico && (pico_ir_proto_1 || pico_ir_i2c_1)) || (linux && ir_hat_1)

package provider

import "sensorcode-go/services/hal/internal/provider/setups"

func init() {
	SelectedPlan = setups.SelectedPlan
	InitialHALConfig = setups.SelectedSetup
	BoardName = setups.SelectedName
}
