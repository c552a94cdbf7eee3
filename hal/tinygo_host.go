//go:build tinygo

package hal

import (
	"io"
	"os"

	"hearth/kernel/arch"
	"hearth/kernel/mmio"
)

type tinyGoHostHAL struct {
	logger tinyGoHostLogger
	m      *Machine
	fb     *hostFramebuffer
}

// New returns a TinyGo-on-host HAL around a fresh machine. There is no
// window or audio; the UART transmits to tx.
func New(cfg Config, tx io.Writer) (HAL, error) {
	cfg.defaults()
	m, err := NewMachine(cfg, tx, nil)
	if err != nil {
		return nil, err
	}
	return &tinyGoHostHAL{m: m, fb: newHostFramebuffer(cfg.Width, cfg.Height)}, nil
}

func (h *tinyGoHostHAL) Logger() Logger          { return h.logger }
func (h *tinyGoHostHAL) Platform() arch.Platform { return h.m }
func (h *tinyGoHostHAL) Mapper() mmio.Mapper     { return h.m }
func (h *tinyGoHostHAL) Display() Display        { return hostDisplay{fb: h.fb} }
func (h *tinyGoHostHAL) Input() Input            { return h.m }
func (h *tinyGoHostHAL) PowerOff()               { h.m.PowerOff() }

// Run boots k with the UART on stdin and stdout and returns the machine's
// exit code.
func Run(cfg Config, k Kernel) (int, error) {
	h, err := New(cfg, os.Stdout)
	if err != nil {
		return 0, err
	}
	m := h.(*tinyGoHostHAL).m
	defer m.Close()

	go func() {
		buf := make([]byte, 64)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				m.Serial(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	err = k(h)
	return m.ExitCode(), err
}

type tinyGoHostLogger struct{}

func (tinyGoHostLogger) WriteLineString(s string) { println(s) }
func (tinyGoHostLogger) WriteLineBytes(b []byte)  { println(string(b)) }
