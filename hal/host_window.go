//go:build !tinygo && cgo

package hal

import (
	"context"
	"errors"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"

	"hearth/internal/buildinfo"
)

// RunWindow boots k on a machine whose framebuffer is shown in a desktop
// window and whose keyboard is the window's. It blocks until the window
// closes or the machine powers off.
func RunWindow(ctx context.Context, cfg HostConfig, k Kernel) (int, error) {
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
	g.Go(func() error {
		defer cancel()
		return k(h)
	})
	g.Go(func() error {
		<-gctx.Done()
		h.m.PowerOff()
		return nil
	})
	// Reads from stdin cannot be interrupted, so the pump is left behind
	// when the machine stops.
	go pumpSerial(rx, h.m)

	game := &hostGame{h: h}
	ebiten.SetWindowTitle("Hearth (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	runErr := ebiten.RunGame(game)
	h.m.PowerOff()

	if err := g.Wait(); err != nil {
		return h.m.ExitCode(), err
	}
	if runErr != nil && !errors.Is(runErr, ebiten.Termination) {
		return h.m.ExitCode(), runErr
	}
	return h.m.ExitCode(), nil
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	shown   uint64
}

func (g *hostGame) Update() error {
	if g.h.m.Off() {
		return ebiten.Termination
	}
	pollKeyboard(g.h.m)
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	if n := fb.snapshotRGB565(g.scratch); n != g.shown {
		g.shown = n
		expand565(g.img.Pix, g.scratch)
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
