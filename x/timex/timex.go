package timex

import "time"

// NowMs is the timestamp base used in bus payloads: Unix milliseconds.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz converts a frequency to its period in nanoseconds, the unit
// PWM configuration expects. hz 0 yields 0; clamp before calling.
func PeriodFromHz(hz uint64) uint64 {
	if hz == 0 {
		return 0
	}
	return uint64(time.Second) / hz
}
