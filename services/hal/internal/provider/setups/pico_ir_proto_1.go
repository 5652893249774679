//go:build pico && pico_ir_proto_1

package setups

import (
	"sensorcode-go/services/hal/devices/gpio_button"
	"sensorcode-go/services/hal/devices/gpio_dout"
	"sensorcode-go/services/hal/devices/mux_array"
	"sensorcode-go/services/hal/devices/pwm_out"
	"sensorcode-go/services/hal/devices/rp2_temp"
	serialraw "sensorcode-go/services/hal/devices/serial_raw"

	"sensorcode-go/types"
)

// SelectedName keys the embedded boot config for this board.
var SelectedName = "pico_ir_proto_1"

// Breadboard prototype: CD4067 on direct select lines, sensor bank on the
// on-die converter. uart0 (GP0/GP1) is deliberately not in the plan: the
// stream link owns it outside the HAL.
var SelectedPlan = ResourcePlan{
	UART: []UARTPlan{
		{ID: "uart1", TX: 8, RX: 9, Baud: 115200},
	},
	ADC: []ADCPlan{
		{ID: "adc0", GPIO: 26},
	},
}

// SelectedSetup lists logical devices for HAL to instantiate on boot.
// Names are chosen for meaningful public addresses under hal/cap/…
var SelectedSetup = types.HALConfig{
	Devices: []types.HALDevice{

		// IR bank behind the multiplexer (public address hal/cap/sensor/array/ir/…)
		{ID: "array0", Type: "mux_array", Params: mux_array.Params{
			S0: 2, S1: 3, S2: 4, S3: 5,
			EN:       6,
			ADC:      "onboard:adc0",
			Channels: 14, // proto board populates 14 of 16 positions
			SettleUS: 10,
			Domain:   "sensor",
			Name:     "ir",
		}},

		// User button, pressed == low (public address hal/cap/io/button/user/…)
		{ID: "btn0", Type: "gpio_button", Params: gpio_button.Params{
			Pin: 7, Pull: "up", Invert: true, DebounceMs: 30,
			Domain: "io", Name: "user",
		}},

		// On-board LED (public address hal/cap/io/led/onboard/…)
		{ID: "onboard", Type: "gpio_led", Params: gpio_dout.Params{Pin: 25}},

		// IR emitter bank brightness (public address hal/cap/io/pwm/emitters/…).
		// 25 kHz keeps the drive transistor out of the audible band; full
		// brightness at boot so sweeps see an illuminated field immediately.
		{ID: "emitters", Type: "pwm_out", Params: pwm_out.Params{
			Pin: 15, FreqHz: 25_000, Top: 1000, Initial: 1000,
			Domain: "io", Name: "emitters",
		}},

		// Die temperature (public address hal/cap/env/temperature/mcu/…)
		{ID: "mcu", Type: "rp2_temp", Params: rp2_temp.Params{Domain: "env", Name: "mcu"}},

		// Spare serial port for bench gear (public address hal/cap/io/serial/aux/…)
		{ID: "uart1_raw", Type: "serial_raw", Params: serialraw.Params{
			Bus:    "uart1",
			Domain: "io",
			Name:   "aux",
			Baud:   115200,
			RXSize: 512,
			TXSize: 512,
		}},
	},

	Pollers: []types.PollSpec{
		{Domain: "sensor", Kind: types.KindArray, Name: "ir", Verb: "sweep", IntervalMs: 1000, JitterMs: 50},
		{Domain: "env", Kind: types.KindTemperature, Name: "mcu", Verb: "read", IntervalMs: 5000, JitterMs: 250},
	},
}
