//go:build pico && pico_ir_i2c_1

package setups

import (
	"sensorcode-go/services/hal/devices/gpio_dout"
	"sensorcode-go/services/hal/devices/mux_array"
	"sensorcode-go/services/hal/devices/rp2_temp"

	"sensorcode-go/types"
)

var SelectedName = "pico_ir_i2c_1"

// Two-wire variant: select lines behind a PCF8574, conversions on an
// ADS1115. Only the bus pins leave the MCU.
var SelectedPlan = ResourcePlan{
	I2C: []I2CPlan{
		// The PCF8574 tops out at 100 kHz, which bounds the whole bus.
		{ID: "i2c0", SDA: 4, SCL: 5, Hz: 100_000},
	},
}

// SelectedSetup lists logical devices for HAL to instantiate on boot.
// Names are chosen for meaningful public addresses under hal/cap/…
var SelectedSetup = types.HALConfig{
	Devices: []types.HALDevice{

		// Fully populated bank, everything on i2c0
		// (public address hal/cap/sensor/array/ir/…)
		{ID: "array0", Type: "mux_array", Params: mux_array.Params{
			Expander:  "pcf8574:i2c0,0x20",
			ADC:       "ads1115:i2c0,0x48,0",
			Channels:  16,
			SettleUS:  15, // expander settles slower than direct drive
			PollLimit: 64,
			Domain:    "sensor",
			Name:      "ir",
		}},

		// On-board LED (public address hal/cap/io/led/onboard/…)
		{ID: "onboard", Type: "gpio_led", Params: gpio_dout.Params{Pin: 25}},

		// Die temperature (public address hal/cap/env/temperature/mcu/…)
		{ID: "mcu", Type: "rp2_temp", Params: rp2_temp.Params{Domain: "env", Name: "mcu"}},
	},

	Pollers: []types.PollSpec{
		// Bus-serialised sweeps are slower; poll at half the proto rate.
		{Domain: "sensor", Kind: types.KindArray, Name: "ir", Verb: "sweep", IntervalMs: 2000, JitterMs: 100},
		{Domain: "env", Kind: types.KindTemperature, Name: "mcu", Verb: "read", IntervalMs: 5000, JitterMs: 250},
	},
}
