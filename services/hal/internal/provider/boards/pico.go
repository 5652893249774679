//go:build pico

package boards

// Raspberry Pi Pico: GP0..GP29 usable (26..29 double as ADC0..3), LED on
// GP25.
var SelectedBoard = Board{
	Name:    "pico",
	GPIOMin: 0,
	GPIOMax: 29,
	LED:     25,
}
