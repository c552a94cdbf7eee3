package urandom

import (
	"bytes"
	"errors"
	"testing"

	"hearth/kernel"
	"hearth/kernel/uptime"
	"hearth/kernel/vfs"
)

func TestNotReadyBeforeInit(t *testing.T) {
	if _, err := Read(); !errors.Is(err, kernel.ErrNotReady) {
		t.Fatalf("Read() before Init err = %v, want ErrNotReady", err)
	}
}

func TestReadThroughDev(t *testing.T) {
	clock := uptime.NewManual(12345)
	Init(clock)
	fs := vfs.New()

	if err := ProbeAndAttach(fs); err != nil {
		t.Fatalf("ProbeAndAttach() err = %v", err)
	}
	f, err := fs.Open("/dev/urandom")
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	if !f.Info().Attached {
		t.Fatalf("Info().Attached = false")
	}

	a, err := f.Read()
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	if len(a) != ReadSize {
		t.Fatalf("len(Read()) = %d, want %d", len(a), ReadSize)
	}
	if bytes.Equal(a, make([]byte, ReadSize)) {
		t.Fatalf("Read() returned all zeroes")
	}

	b, _ := f.Read()
	if bytes.Equal(a, b) {
		t.Fatalf("two reads at the same uptime returned the same bytes")
	}

	if err := f.Write([]byte("ignored")); err != nil {
		t.Fatalf("Write() err = %v, want nil", err)
	}

	if err := ProbeAndAttach(fs); err != nil {
		t.Fatalf("second ProbeAndAttach() err = %v, want nil", err)
	}
}
