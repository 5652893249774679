//go:build linux && ir_hat_1

package setups

import (
	"sensorcode-go/services/hal/devices/gpio_dout"
	"sensorcode-go/services/hal/devices/mux_array"

	"sensorcode-go/types"
)

var SelectedName = "pi_ir_hat_1"

// Raspberry Pi hat: select lines on header GPIOs, conversions on an
// ADS1115. SDA/SCL are fixed by the header, so the plan only names the
// kernel bus.
var SelectedPlan = ResourcePlan{
	I2C: []I2CPlan{
		{ID: "i2c1", SDA: -1, SCL: -1, Hz: 100_000},
	},
}

// SelectedSetup lists logical devices for HAL to instantiate on boot.
// Names are chosen for meaningful public addresses under hal/cap/…
var SelectedSetup = types.HALConfig{
	Devices: []types.HALDevice{

		// IR bank, BCM numbering (public address hal/cap/sensor/array/ir/…)
		{ID: "array0", Type: "mux_array", Params: mux_array.Params{
			S0: 17, S1: 27, S2: 22, S3: 23,
			EN:        24,
			ADC:       "ads1115:i2c1,0x48,0",
			Channels:  16,
			SettleUS:  15,
			PollLimit: 64,
			Domain:    "sensor",
			Name:      "ir",
		}},

		// Hat status LED (public address hal/cap/io/led/status/…)
		{ID: "status", Type: "gpio_led", Params: gpio_dout.Params{Pin: 16}},
	},

	Pollers: []types.PollSpec{
		{Domain: "sensor", Kind: types.KindArray, Name: "ir", Verb: "sweep", IntervalMs: 2000, JitterMs: 100},
	},
}
