// Package busywait provides a blocking microsecond delay built on a counted
// spin loop. The per-microsecond cycle budget is derived from the core clock
// and an empirically tuned per-iteration cost divisor, so the delay is an
// approximation and must be treated as a lower bound, not an exact interval.
package busywait

import "sync/atomic"

// DefaultDivisor is the per-iteration cost factor the cycle budget is divided
// by. Tuned on Cortex-M0+ at 125 MHz; clock-dependent, override via Calibrate.
const DefaultDivisor = 3

// Loop is a spin-delay calibrated for one core clock. The zero value never
// delays.
type Loop struct {
	// CyclesPerUS is the number of loop iterations that burn roughly one
	// microsecond.
	CyclesPerUS uint32
}

// Calibrate derives a Loop from a core clock frequency in Hz. divisor==0 is
// coerced to DefaultDivisor.
func Calibrate(clockHz, divisor uint32) Loop {
	if divisor == 0 {
		divisor = DefaultDivisor
	}
	return Loop{CyclesPerUS: clockHz / 1_000_000 / divisor}
}

var sink uint32

// DelayUS spins for at least us microseconds. It does not yield the
// processor.
func (l Loop) DelayUS(us uint32) {
	n := l.CyclesPerUS * us
	for i := uint32(0); i < n; i++ {
		// The atomic load keeps the loop body from being optimised away.
		atomic.LoadUint32(&sink)
	}
}
