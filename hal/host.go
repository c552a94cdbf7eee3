//go:build !tinygo

package hal

import (
	"context"
	"io"
	"os"

	"hearth/kernel/arch"
	"hearth/kernel/mmio"
)

// HostConfig selects how the machine is wired to the host.
type HostConfig struct {
	Machine Config
	// Headless runs without a window.
	Headless bool
	// Serial names a host serial port for COM1. Empty means stdin and
	// stdout.
	Serial string
	// KeyboardTTY puts the terminal in raw mode and types into the PS/2
	// keyboard instead of the UART. Headless only.
	KeyboardTTY bool
	// Mute keeps the speaker away from the host's audio device.
	Mute bool
}

type hostHAL struct {
	logger *hostLogger
	m      *Machine
	fb     *hostFramebuffer
	aud    *hostAudio
}

// New returns a host HAL around a fresh machine whose UART transmits to
// tx.
func New(cfg Config, tx io.Writer) (HAL, error) {
	h, err := newHost(cfg, tx, false)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func newHost(cfg Config, tx io.Writer, sound bool) (*hostHAL, error) {
	cfg.defaults()
	h := &hostHAL{
		logger: newHostLogger(os.Stderr),
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
	}
	var tone Tone
	if sound {
		h.aud = newHostAudio()
		tone = h.aud
	}
	m, err := NewMachine(cfg, tx, tone)
	if err != nil {
		return nil, err
	}
	h.m = m
	return h, nil
}

func (h *hostHAL) Logger() Logger          { return h.logger }
func (h *hostHAL) Platform() arch.Platform { return h.m }
func (h *hostHAL) Mapper() mmio.Mapper     { return h.m }
func (h *hostHAL) Display() Display        { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input            { return h.m }
func (h *hostHAL) PowerOff()               { h.m.PowerOff() }

// Machine exposes the simulated PC behind h.
func (h *hostHAL) Machine() *Machine { return h.m }

func (h *hostHAL) close() {
	if h.aud != nil {
		h.aud.Close()
	}
	h.m.Close()
}

// Run boots k on a new host machine, in a window unless cfg.Headless, and
// returns the machine's exit code once k returns or the machine powers off.
func Run(ctx context.Context, cfg HostConfig, k Kernel) (int, error) {
	if cfg.Headless {
		return RunHeadless(ctx, cfg, k)
	}
	return RunWindow(ctx, cfg, k)
}
