package device

import (
	"sync/atomic"

	"hearth/kernel"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
)

// Singleton is the process-wide instance of a driver. It is empty until the
// driver's Init runs; until then every access reports ErrNotReady.
type Singleton[D any] struct {
	p atomic.Pointer[spin.Mutex[D]]
}

// Set installs m. A later Set replaces the instance, which only tests do.
func (s *Singleton[D]) Set(m *spin.Mutex[D]) { s.p.Store(m) }

func (s *Singleton[D]) Get() (*spin.Mutex[D], error) {
	m := s.p.Load()
	if m == nil {
		return nil, kernel.ErrNotReady
	}
	return m, nil
}

// With runs fn on the driver under TryLock.
func (s *Singleton[D]) With(fn func(d *D) error) error {
	m, err := s.Get()
	if err != nil {
		return err
	}
	return m.With(fn)
}

// Lifecycler is the probe/attach half of Driver.
type Lifecycler[A any] interface {
	Info() Info
	Probe() error
	Attach(arg A) error
}

// ProbeAndAttach probes and attaches the driver guarded by m in one
// critical section.
func ProbeAndAttach[D any, A any, P interface {
	*D
	Lifecycler[A]
}](m *spin.Mutex[D], arg A) error {
	g, err := m.TryLock()
	if err != nil {
		return err
	}
	defer g.Unlock()

	d := P(g.Get())
	if err := d.Probe(); err != nil {
		return err
	}
	if err := d.Attach(arg); err != nil {
		return err
	}
	klog.Infof("%s: attached", d.Info().Name)
	return nil
}
