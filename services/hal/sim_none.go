//go:build rp2040 || rp2350 || ir_hat_1

package hal

import "sensorcode-go/services/hal/internal/core"

// Real hardware: nothing to script.
func captureSim(core.ResourceRegistry) {}
