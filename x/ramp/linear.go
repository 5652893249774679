// Package ramp implements caller-paced linear level ramps for PWM outputs.
package ramp

import (
	"time"

	"sensorcode-go/x/mathx"
)

// Step applies a new logical level in [0..top].
type Step func(level uint16)

// Tick blocks for d and reports false once the ramp is cancelled.
type Tick func(d time.Duration) bool

// StartLinear walks the level from cur to target over durationMs in the
// given number of steps, pausing via tick and applying points via set. It
// runs on the caller's goroutine. steps 0 or durationMs 0 snap straight to
// the target; the target and every emitted point are clamped to top. A
// cancelled tick stops the walk where it is, with no final snap.
func StartLinear(cur, target, top uint16, durationMs uint32, steps uint16, tick Tick, set Step) {
	target = mathx.Min(target, top)
	if steps == 0 || durationMs == 0 {
		set(target)
		return
	}

	pause := time.Duration(mathx.Max(durationMs/uint32(steps), 1)) * time.Millisecond
	from := int64(mathx.Min(cur, top))
	span := int64(target) - from
	last := int64(-1) // force the first computed point to apply
	for i := int64(1); i <= int64(steps); i++ {
		if !tick(pause) {
			return
		}
		level := from + span*i/int64(steps)
		if level != last {
			set(uint16(level))
			last = level
		}
	}
}
