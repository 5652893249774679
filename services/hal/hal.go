// services/hal/hal.go
package hal

import (
	"context"

	"sensorcode-go/bus"
	"sensorcode-go/services/hal/internal/core"
	"sensorcode-go/services/hal/internal/provider"
	"sensorcode-go/types"

	// Device builders register themselves at init.
	_ "sensorcode-go/services/hal/devices/gpio_button"
	_ "sensorcode-go/services/hal/devices/gpio_dout"
	_ "sensorcode-go/services/hal/devices/mux_array"
	_ "sensorcode-go/services/hal/devices/pwm_out"
	_ "sensorcode-go/services/hal/devices/rp2_temp"
	_ "sensorcode-go/services/hal/devices/serial_raw"
)

// Run assembles the platform's resources and drives the HAL loop until ctx
// ends. Device wiring arrives on config/hal; capability traffic lives under
// hal/cap/<domain>/<kind>/<name>/….
func Run(ctx context.Context, conn *bus.Connection) {
	res := provider.NewResources()
	captureSim(res.Reg)
	core.NewHAL(conn, res).Run(ctx)
}

// BoardConfig returns the device table compiled in for the selected board
// setup (empty without a setup tag). Mains publish it retained on config/hal
// at boot.
func BoardConfig() types.HALConfig {
	return provider.InitialHALConfig
}

// BoardName is the setup identifier compiled in by build tags. It keys the
// embedded boot config ("host" when no setup tag is selected).
func BoardName() string {
	return provider.BoardName
}
