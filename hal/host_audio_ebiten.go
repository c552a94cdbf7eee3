//go:build !tinygo && cgo

package hal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

const (
	audioSampleRate = 44100
	audioAmplitude  = 6000
)

// hostAudio plays the PC speaker's square wave through Ebiten's audio
// package. The player is created on the first tone.
type hostAudio struct {
	hz atomic.Uint32

	once   sync.Once
	player *audio.Player
	err    error
}

func newHostAudio() *hostAudio {
	return &hostAudio{}
}

func (a *hostAudio) SetTone(hz uint32) {
	a.hz.Store(hz)
	if hz == 0 {
		return
	}
	a.once.Do(func() {
		ctx := audio.CurrentContext()
		if ctx == nil {
			ctx = audio.NewContext(audioSampleRate)
		}
		p, err := ctx.NewPlayer(&squareWave{a: a, rate: uint32(ctx.SampleRate())})
		if err != nil {
			a.err = err
			return
		}
		p.SetBufferSize(50 * time.Millisecond)
		p.Play()
		a.player = p
	})
}

func (a *hostAudio) Close() error {
	if a.player != nil {
		return a.player.Close()
	}
	return nil
}

// squareWave is an endless 16-bit stereo stream at the current tone.
type squareWave struct {
	a     *hostAudio
	rate  uint32
	phase uint32
}

func (w *squareWave) Read(p []byte) (int, error) {
	hz := w.a.hz.Load()
	n := len(p) &^ 3
	for i := 0; i < n; i += 4 {
		var s int16
		if hz > 0 {
			w.phase += hz
			if w.phase >= w.rate {
				w.phase -= w.rate
			}
			if w.phase < w.rate/2 {
				s = audioAmplitude
			} else {
				s = -audioAmplitude
			}
		}
		p[i+0] = byte(s)
		p[i+1] = byte(s >> 8)
		p[i+2] = byte(s)
		p[i+3] = byte(s >> 8)
	}
	return n, nil
}
