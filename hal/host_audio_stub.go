//go:build !tinygo && !cgo

package hal

// hostAudio remembers the tone it was asked for; there is no audio backend
// without cgo.
type hostAudio struct {
	hz uint32
}

func newHostAudio() *hostAudio { return &hostAudio{} }

func (a *hostAudio) SetTone(hz uint32) { a.hz = hz }

func (a *hostAudio) Close() error { return nil }
