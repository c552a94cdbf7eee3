//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// RunHeadless boots k without a window. The console framebuffer is still
// drawn, but only the UART and the log reach the terminal.
func RunHeadless(ctx context.Context, cfg HostConfig, k Kernel) (int, error) {
	rx, tx, closer, err := uartLine(cfg.Serial)
	if err != nil {
		return 0, err
	}
	if closer != nil {
		defer closer.Close()
	}
	h, err := newHost(cfg.Machine, tx, !cfg.Mute)
	if err != nil {
		return 0, err
	}
	defer h.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.KeyboardTTY {
		kbd, err := openTTYKeyboard()
		if err != nil {
			return 0, fmt.Errorf("keyboard tty: %w", err)
		}
		defer kbd.Close()
		go kbd.run(h.m)
		fmt.Fprintln(os.Stderr, "hal: keyboard attached to terminal, ctrl-c powers off")
	} else if closer == nil {
		// Reads from stdin cannot be interrupted; the pump is left behind
		// when the machine stops.
		go pumpSerial(rx, h.m)
	}
	if closer != nil {
		g.Go(func() error {
			err := pumpSerial(rx, h.m)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		defer cancel()
		return k(h)
	})
	g.Go(func() error {
		<-gctx.Done()
		h.m.PowerOff()
		if closer != nil {
			closer.Close()
		}
		return nil
	})

	err = g.Wait()
	return h.m.ExitCode(), err
}
