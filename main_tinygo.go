//go:build tinygo

package main

import (
	"os"

	"hearth/app"
	"hearth/hal"
)

func main() {
	cfg := app.DefaultConfig()
	code, err := hal.Run(hal.Config{BusHz: cfg.Timer.BusHz}, app.Kernel(cfg))
	if err != nil {
		println("hearth:", err.Error())
		os.Exit(1)
	}
	os.Exit(code >> 1)
}
