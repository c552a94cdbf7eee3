//go:build tinygo

package arch

import "runtime/interrupt"

// On real hardware the simulated flag is not enough: the board's own
// interrupt controller feeds the machine model.
func maskInt(fn func()) {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	fn()
}
