//go:build rp2040 || rp2350

package busywait

import "machine"

// ForCPU calibrates against the running core clock with the default divisor.
func ForCPU() Loop { return Calibrate(machine.CPUFrequency(), DefaultDivisor) }
