package fifo

import (
	"math"
	"runtime"
	"sync"
	"testing"
)

func TestTryPopEmpty(t *testing.T) {
	f := New[byte](4)

	_, ok := f.TryPop()
	if ok {
		t.Fatalf("TryPop() ok = true, want false")
	}
}

func TestTryPushFull(t *testing.T) {
	f := New[int](8)

	for i := 0; i < f.Cap(); i++ {
		if ok := f.TryPush(i); !ok {
			t.Fatalf("TryPush() ok = false at slot %d, want true", i)
		}
	}
	if ok := f.TryPush(99); ok {
		t.Fatalf("TryPush() ok = true when full, want false")
	}
	if got := f.Len(); got != 8 {
		t.Fatalf("Len() = %d, want 8", got)
	}

	for i := 0; i < f.Cap(); i++ {
		v, ok := f.TryPop()
		if !ok {
			t.Fatalf("TryPop() ok = false at slot %d, want true", i)
		}
		if v != i {
			t.Fatalf("TryPop() = %d, want %d", v, i)
		}
	}
}

func TestDrainAndReset(t *testing.T) {
	f := New[byte](4)
	for _, b := range []byte("abc") {
		f.TryPush(b)
	}

	buf := make([]byte, 2)
	if n := f.Drain(buf); n != 2 || string(buf) != "ab" {
		t.Fatalf("Drain() = %d %q, want 2 \"ab\"", n, buf)
	}
	f.Reset()
	if got := f.Len(); got != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", got)
	}
	if !f.TryPush('z') {
		t.Fatalf("TryPush() after Reset = false")
	}
}

func TestProducerConsumer(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(oldProcs)

	const total = 40_000

	f := New[uint32](16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(0); i < total; i++ {
			f.Push(i)
		}
	}()

	for want := uint32(0); want < total; want++ {
		var (
			got uint32
			ok  bool
		)
		for {
			got, ok = f.TryPop()
			if ok {
				break
			}
			runtime.Gosched()
		}
		if got != want {
			t.Fatalf("TryPop() = %d, want %d", got, want)
		}
	}

	wg.Wait()
}

func TestCounterWrap(t *testing.T) {
	f := New[int](4)
	f.head.Store(math.MaxUint32 - 1)
	f.tail.Store(math.MaxUint32 - 1)

	for round := 0; round < 3; round++ {
		for i := 0; i < f.Cap(); i++ {
			if !f.TryPush(round*10 + i) {
				t.Fatalf("TryPush() ok = false in round %d at %d", round, i)
			}
		}
		if f.TryPush(-1) {
			t.Fatalf("TryPush() ok = true when full in round %d", round)
		}
		for i := 0; i < f.Cap(); i++ {
			v, ok := f.TryPop()
			if !ok || v != round*10+i {
				t.Fatalf("TryPop() = %d, %v in round %d, want %d", v, ok, round, round*10+i)
			}
		}
	}
}

func TestNewRejectsOddSizes(t *testing.T) {
	for _, size := range []int{0, -4, 3, 12} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("New(%d) did not panic", size)
				}
			}()
			New[byte](size)
		}()
	}
}
