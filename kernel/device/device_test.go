package device

import (
	"errors"
	"testing"

	"hearth/kernel"
)

type silent struct {
	Lifecycle
	Base[int, byte]
}

func (s *silent) Probe() error     { s.SetProbed(); return nil }
func (s *silent) Attach(any) error { return nil }

var _ Driver[any, int, byte] = (*silent)(nil)

func TestBaseDefaults(t *testing.T) {
	s := &silent{Lifecycle: NewLifecycle("silent")}

	if err := s.Open(); err != nil {
		t.Fatalf("Open() err = %v, want nil", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() err = %v, want nil", err)
	}
	if _, err := s.Read(); !IsUnimplemented(err) {
		t.Fatalf("Read() err = %v, want ErrUnimplemented", err)
	}
	if err := s.Write(nil); !IsUnimplemented(err) {
		t.Fatalf("Write() err = %v, want ErrUnimplemented", err)
	}
	if _, err := s.PollNormal(); !IsUnimplemented(err) {
		t.Fatalf("PollNormal() err = %v, want ErrUnimplemented", err)
	}
	if _, err := s.PollInt(); !IsUnimplemented(err) {
		t.Fatalf("PollInt() err = %v, want ErrUnimplemented", err)
	}
}

func TestLifecycle(t *testing.T) {
	l := NewLifecycle("x")
	if err := l.CheckProbed("read"); !errors.Is(err, kernel.ErrNotReady) {
		t.Fatalf("CheckProbed() err = %v, want ErrNotReady", err)
	}
	if _, err := l.CheckAttach(); !errors.Is(err, kernel.ErrNotReady) {
		t.Fatalf("CheckAttach() err = %v, want ErrNotReady", err)
	}

	l.SetProbed()
	if done, err := l.CheckAttach(); done || err != nil {
		t.Fatalf("CheckAttach() = %v, %v; want false, nil", done, err)
	}
	l.SetAttached()
	if done, err := l.CheckAttach(); !done || err != nil {
		t.Fatalf("CheckAttach() after attach = %v, %v; want true, nil", done, err)
	}
	if info := l.Info(); info != (Info{Name: "x", Attached: true}) {
		t.Fatalf("Info() = %+v", info)
	}
}

func TestSetAttachedBeforeProbePanics(t *testing.T) {
	l := NewLifecycle("x")
	defer func() {
		if recover() == nil {
			t.Fatalf("SetAttached() before probe did not panic")
		}
	}()
	l.SetAttached()
}

func TestError(t *testing.T) {
	err := error(&Error{Device: "uart", Op: "write", Err: kernel.ErrBusy})
	if err.Error() != "uart: write: busy" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !kernel.IsRetry(err) {
		t.Fatalf("IsRetry() = false for wrapped ErrBusy")
	}
	var de *Error
	if !errors.As(Errorf("ps2-kbd", "probe", "self test: %#x", 0xFC), &de) || de.Device != "ps2-kbd" {
		t.Fatalf("Errorf() did not build a *Error")
	}
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"tty0", "local-apic-timer", "urandom"} {
		if err := ValidName(ok); err != nil {
			t.Fatalf("ValidName(%q) err = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "dev/tty", "has space", "0123456789abcdef0123456789abcdefX"} {
		if err := ValidName(bad); !errors.Is(err, kernel.ErrInvalidArgument) {
			t.Fatalf("ValidName(%q) err = %v, want ErrInvalidArgument", bad, err)
		}
	}
}
