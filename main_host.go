//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"hearth/app"
	"hearth/hal"
	"hearth/kernel"
)

func main() {
	var (
		hc         hal.HostConfig
		configPath string
		hz         int
	)
	flag.BoolVar(&hc.Headless, "headless", false, "Run without a window.")
	flag.IntVar(&hz, "hz", 0, "Timer interrupt rate (0 = from config, default 100).")
	flag.Uint64Var(&hc.Machine.MaxTicks, "ticks", 0, "Power off after N timer interrupts (0 = run until powered off).")
	flag.BoolVar(&hc.Machine.FastForward, "fast", false, "Run on virtual time, skipping idle periods.")
	flag.StringVar(&configPath, "config", "", "YAML boot configuration.")
	flag.StringVar(&hc.Serial, "serial", "", "Host serial port backing COM1 (default stdin/stdout).")
	flag.BoolVar(&hc.KeyboardTTY, "kbd-tty", false, "Headless: type into the PS/2 keyboard from a raw terminal.")
	flag.BoolVar(&hc.Mute, "mute", false, "Do not play the PC speaker.")
	flag.Parse()

	cfg := app.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = app.LoadConfig(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if hz > 0 {
		cfg.Timer.Period = time.Second / time.Duration(hz)
	}
	if hc.Serial == "" {
		hc.Serial = cfg.Serial
	}
	hc.Machine.BusHz = cfg.Timer.BusHz

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := hal.Run(ctx, hc, app.Kernel(cfg))
	switch {
	case errors.Is(err, kernel.ErrFatal):
		os.Exit(exitStatus(code, 1))
	case err != nil && !errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitStatus(code, 0))
}

// exitStatus undoes the debug exit device's v<<1|1 encoding.
func exitStatus(code, fallback int) int {
	if code&1 == 0 {
		return fallback
	}
	return code >> 1
}
