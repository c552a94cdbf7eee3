package spin

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"hearth/kernel"
)

func TestLockUnlock(t *testing.T) {
	m := New(0)

	g, err := m.TryLock()
	if err != nil {
		t.Fatalf("TryLock() err = %v, want nil", err)
	}
	*g.Get() += 1
	if got := *g.Get(); got != 1 {
		t.Fatalf("value = %d, want 1", got)
	}
	g.Unlock()

	g, err = m.TryLock()
	if err != nil {
		t.Fatalf("TryLock() after unlock err = %v, want nil", err)
	}
	defer g.Unlock()
	if got := *g.Get(); got != 1 {
		t.Fatalf("value = %d, want 1", got)
	}
}

func TestTryLockBusy(t *testing.T) {
	m := New("x")

	g, err := m.TryLock()
	if err != nil {
		t.Fatalf("TryLock() err = %v, want nil", err)
	}
	if _, err := m.TryLock(); !errors.Is(err, kernel.ErrBusy) {
		t.Fatalf("second TryLock() err = %v, want ErrBusy", err)
	}
	if !m.Locked() {
		t.Fatalf("Locked() = false while guard is live")
	}
	g.Unlock()
	if m.Locked() {
		t.Fatalf("Locked() = true after Unlock")
	}
}

func TestForceMut(t *testing.T) {
	m := New(0)
	*m.ForceMut() += 1

	g, err := m.TryLock()
	if err != nil {
		t.Fatalf("TryLock() err = %v, want nil", err)
	}
	defer g.Unlock()
	if got := *g.Get(); got != 1 {
		t.Fatalf("value = %d, want 1", got)
	}
}

func TestDoubleUnlockPanics(t *testing.T) {
	m := New(0)
	g := m.SpinLock()
	g.Unlock()

	defer func() {
		if recover() == nil {
			t.Fatalf("second Unlock() did not panic")
		}
	}()
	g.Unlock()
}

func TestWithReleases(t *testing.T) {
	m := New([]int(nil))
	if err := m.With(func(v *[]int) error {
		*v = append(*v, 1)
		return nil
	}); err != nil {
		t.Fatalf("With() err = %v, want nil", err)
	}

	wantErr := errors.New("boom")
	if err := m.With(func(*[]int) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("With() err = %v, want %v", err, wantErr)
	}
	if m.Locked() {
		t.Fatalf("With() left the mutex locked")
	}

	g := m.SpinLock()
	if err := m.With(func(*[]int) error { return nil }); !errors.Is(err, kernel.ErrBusy) {
		t.Fatalf("With() on held mutex err = %v, want ErrBusy", err)
	}
	g.Unlock()
}

func TestSpinLockMutualExclusion(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(oldProcs)

	const (
		workers = 4
		perWork = 10_000
	)

	type state struct {
		n      int
		inside int
	}
	m := New(state{})

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				g := m.SpinLock()
				s := g.Get()
				s.inside++
				if s.inside != 1 {
					panic("two guards live at once")
				}
				s.n++
				if i%64 == 0 {
					runtime.Gosched()
				}
				s.inside--
				g.Unlock()
			}
		}()
	}
	wg.Wait()

	if got := m.ForceMut().n; got != workers*perWork {
		t.Fatalf("counter = %d, want %d", got, workers*perWork)
	}
}
