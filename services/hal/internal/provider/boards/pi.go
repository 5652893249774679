//go:build ir_hat_1

package boards

// Raspberry Pi 40-pin header: BCM 0-27 are routed, no board-managed LED
// (the hat carries its own on BCM 16).
var SelectedBoard = Board{
	Name:    "pi",
	GPIOMin: 0,
	GPIOMax: 27,
	LED:     -1,
}
