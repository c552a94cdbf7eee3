//go:build !tinygo

package arch

func maskInt(fn func()) { fn() }
