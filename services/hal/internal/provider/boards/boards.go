// Package boards carries per-board pin envelope constants. The selected
// board is fixed at build time via tags; registries consult it to reject
// claims on pins the carrier does not break out.
package boards

type Board struct {
	Name    string
	GPIOMin int
	GPIOMax int

	// LED is the board's status LED GPIO, or -1 when absent.
	LED int
}
