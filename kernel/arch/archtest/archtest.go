// Package archtest provides a scriptable arch.Platform for driver tests.
package archtest

import (
	"sync"

	"hearth/kernel/arch"
)

// Port models one I/O port.
type Port struct {
	In  func() uint8
	Out func(v uint8)
}

// Platform records port writes and delivers vectors raised by the test.
type Platform struct {
	mu      sync.Mutex
	ports   map[uint16]Port
	pending []arch.Vector
	off     bool
	Writes  []Write
}

// Write is one recorded Out8.
type Write struct {
	Port  uint16
	Value uint8
}

func New() *Platform {
	return &Platform{ports: map[uint16]Port{}}
}

// Install makes p the current platform and enables interrupts.
func Install(p *Platform) *Platform {
	arch.SetPlatform(p)
	arch.EnableInt()
	return p
}

func (p *Platform) Handle(port uint16, h Port) {
	p.mu.Lock()
	p.ports[port] = h
	p.mu.Unlock()
}

func (p *Platform) Raise(v arch.Vector) {
	p.mu.Lock()
	p.pending = append(p.pending, v)
	p.mu.Unlock()
}

func (p *Platform) PowerOff() {
	p.mu.Lock()
	p.off = true
	p.mu.Unlock()
}

func (p *Platform) Wait() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.off
}

func (p *Platform) Take() []arch.Vector {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.pending
	p.pending = nil
	return v
}

func (p *Platform) In8(port uint16) uint8 {
	p.mu.Lock()
	h, ok := p.ports[port]
	p.mu.Unlock()
	if !ok || h.In == nil {
		return 0xFF
	}
	return h.In()
}

func (p *Platform) Out8(port uint16, v uint8) {
	p.mu.Lock()
	p.Writes = append(p.Writes, Write{Port: port, Value: v})
	h, ok := p.ports[port]
	p.mu.Unlock()
	if ok && h.Out != nil {
		h.Out(v)
	}
}
