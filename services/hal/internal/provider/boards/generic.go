//go:build !pico && !ir_hat_1

package boards

// Fallback envelope for bare RP2 modules and host builds: the full RP2040
// bank, no status LED.
var SelectedBoard = Board{
	Name:    "generic",
	GPIOMin: 0,
	GPIOMax: 29,
	LED:     -1,
}
